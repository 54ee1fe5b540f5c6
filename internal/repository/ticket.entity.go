package repository

import (
	"time"

	"github.com/squareft/sms-gateway/internal/model"
)

type TicketEntity struct {
	ID             int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	OrganizationID int64     `db:"organization_id" gorm:"column:organization_id;not null;index"`
	Subject        string    `db:"subject"         gorm:"column:subject;not null"`
	Status         string    `db:"status"          gorm:"column:status;not null;index"`
	CreatedAt      time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (TicketEntity) TableName() string {
	return "tickets"
}

type MembershipEntity struct {
	ID             int64  `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	UserID         string `db:"user_id"         gorm:"column:user_id;not null;uniqueIndex"`
	OrganizationID int64  `db:"organization_id" gorm:"column:organization_id;not null;index"`
	Role           string `db:"role"            gorm:"column:role;not null;default:member"`
}

func (MembershipEntity) TableName() string {
	return "memberships"
}

func toTicketModel(e *TicketEntity) *model.Ticket {
	if e == nil {
		return nil
	}
	return &model.Ticket{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		Subject:        e.Subject,
		Status:         model.TicketStatus(e.Status),
		CreatedAt:      e.CreatedAt,
	}
}
