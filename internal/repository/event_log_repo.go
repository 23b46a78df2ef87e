package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mhmpets/mhm_server/internal/model"
)

type EventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// Append 追加一条事件日志，payload 超长时截断
func (r *EventLogRepository) Append(ctx context.Context, eventType, payload string) (*model.EventLog, error) {
	entry := &model.EventLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Payload:   TruncatePayload(payload),
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *EventLogRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EventLog{}).Count(&count).Error
	return count, err
}

func (r *EventLogRepository) ListByType(ctx context.Context, eventType string) ([]model.EventLog, error) {
	var entries []model.EventLog
	err := r.db.WithContext(ctx).Where("event_type = ?", eventType).Order("timestamp ASC").Find(&entries).Error
	return entries, err
}

func TruncatePayload(payload string) string {
	runes := []rune(payload)
	if len(runes) <= model.MaxEventPayloadLength {
		return payload
	}
	return string(runes[:model.MaxEventPayloadLength])
}
