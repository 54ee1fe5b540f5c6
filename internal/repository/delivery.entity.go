package repository

import (
	"time"

	"github.com/squareft/sms-gateway/internal/model"
)

type DeliveryResultEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	ProviderMessageID string     `db:"provider_message_id" gorm:"column:provider_message_id;index"`
	Status            string     `db:"status"              gorm:"column:status;not null;index"`
	ToNumber          string     `db:"to_number"           gorm:"column:to_number;not null;index"`
	FromNumber        string     `db:"from_number"         gorm:"column:from_number;not null"`
	Body              string     `db:"body"                gorm:"column:body;not null"`
	ErrorCode         string     `db:"error_code"          gorm:"column:error_code"`
	ErrorMessage      string     `db:"error_message"       gorm:"column:error_message"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
	SentAt            *time.Time `db:"sent_at"             gorm:"column:sent_at"`
}

func (DeliveryResultEntity) TableName() string {
	return "delivery_results"
}

func toDeliveryResultEntity(m *model.DeliveryResult) *DeliveryResultEntity {
	if m == nil {
		return nil
	}
	return &DeliveryResultEntity{
		ID:                m.ID,
		ProviderMessageID: m.ProviderMessageID,
		Status:            string(m.Status),
		ToNumber:          m.To,
		FromNumber:        m.From,
		Body:              m.Body,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		CreatedAt:         m.CreatedAt,
		SentAt:            m.SentAt,
	}
}

func toDeliveryResultModel(e *DeliveryResultEntity) *model.DeliveryResult {
	if e == nil {
		return nil
	}
	return &model.DeliveryResult{
		ID:                e.ID,
		ProviderMessageID: e.ProviderMessageID,
		Status:            model.DeliveryStatus(e.Status),
		To:                e.ToNumber,
		From:              e.FromNumber,
		Body:              e.Body,
		ErrorCode:         e.ErrorCode,
		ErrorMessage:      e.ErrorMessage,
		CreatedAt:         e.CreatedAt,
		SentAt:            e.SentAt,
	}
}

func toDeliveryResultModels(entities []*DeliveryResultEntity) []*model.DeliveryResult {
	if entities == nil {
		return nil
	}
	models := make([]*model.DeliveryResult, len(entities))
	for i, e := range entities {
		models[i] = toDeliveryResultModel(e)
	}
	return models
}
