package repository

import (
	"context"
	"errors"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a delivery result does not exist.
	ErrNotFound = errors.New("delivery result not found")
)

type DeliveryRepository struct {
	*pg.DB
}

func NewDeliveryRepository(db *pg.DB) *DeliveryRepository {
	return &DeliveryRepository{
		db,
	}
}

func (r *DeliveryRepository) Create(ctx context.Context, dr *model.DeliveryResult) (*model.DeliveryResult, error) {
	entity := toDeliveryResultEntity(dr)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDeliveryResultModel(entity), nil
}

func (r *DeliveryRepository) GetByProviderMessageID(ctx context.Context, sid string) (*model.DeliveryResult, error) {
	var entity DeliveryResultEntity
	err := r.Read(ctx).Where("provider_message_id = ?", sid).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toDeliveryResultModel(&entity), nil
}

// UpdateFromLookup refreshes the stored row with the outcome of a
// provider status lookup.
func (r *DeliveryRepository) UpdateFromLookup(ctx context.Context, sid string, lookup *model.DeliveryResult) error {
	updates := map[string]interface{}{"status": string(lookup.Status)}
	if lookup.SentAt != nil {
		updates["sent_at"] = *lookup.SentAt
	}
	if lookup.ErrorCode != "" {
		updates["error_code"] = lookup.ErrorCode
	}
	if lookup.ErrorMessage != "" {
		updates["error_message"] = lookup.ErrorMessage
	}

	res := r.Write(ctx).Model(&DeliveryResultEntity{}).
		Where("provider_message_id = ?", sid).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DeliveryRepository) List(ctx context.Context, f model.DeliveryFilter) ([]*model.DeliveryResult, int64, error) {
	q := r.Read(ctx).Model(&DeliveryResultEntity{})

	if f.To != nil && *f.To != "" {
		q = q.Where("to_number = ?", *f.To)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", *f.Until)
	}

	// count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*DeliveryResultEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toDeliveryResultModels(entities), total, nil
}
