package repository

import (
	"context"
	"errors"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNoMembership is returned when a user belongs to no organization.
	ErrNoMembership = errors.New("user has no organization membership")
)

type TicketRepository struct {
	*pg.DB
}

func NewTicketRepository(db *pg.DB) *TicketRepository {
	return &TicketRepository{
		db,
	}
}

// OrgIDForUser resolves the organization a user belongs to.
func (r *TicketRepository) OrgIDForUser(ctx context.Context, userID string) (int64, error) {
	var entity MembershipEntity
	err := r.Read(ctx).Where("user_id = ?", userID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoMembership
		}
		return 0, err
	}
	return entity.OrganizationID, nil
}

// CountTriage counts the organization's tickets still waiting in triage.
func (r *TicketRepository) CountTriage(ctx context.Context, orgID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).Model(&TicketEntity{}).
		Where("organization_id = ? AND status = ?", orgID, string(model.TicketStatusTriage)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	entity := &TicketEntity{
		OrganizationID: t.OrganizationID,
		Subject:        t.Subject,
		Status:         string(t.Status),
		CreatedAt:      t.CreatedAt,
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toTicketModel(entity), nil
}
