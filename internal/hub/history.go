package hub

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// MessageRecord is one persisted inbound typed message. Envelopes are not
// persisted unless a history repository is wired into the server.
type MessageRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID string    `gorm:"type:uuid;not null;uniqueIndex" json:"message_id"`
	ClientID  string    `gorm:"type:uuid;not null;index" json:"client_id"`
	UserID    string    `gorm:"index" json:"user_id"`
	Type      string    `gorm:"not null;index:idx_message_records_type" json:"type"`
	Payload   []byte    `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MessageRecord) TableName() string {
	return "message_records"
}

// HistoryRepository stores and queries dispatched typed messages.
type HistoryRepository interface {
	Record(ctx context.Context, rec *MessageRecord) error
	RecentByType(ctx context.Context, msgType string, limit int) ([]MessageRecord, error)
	RecentByClient(ctx context.Context, clientID string, limit int) ([]MessageRecord, error)
}

type gormHistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository builds the gorm-backed history store.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

func (r *gormHistoryRepository) Record(ctx context.Context, rec *MessageRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormHistoryRepository) RecentByType(ctx context.Context, msgType string, limit int) ([]MessageRecord, error) {
	var records []MessageRecord
	err := r.db.WithContext(ctx).
		Where("type = ?", msgType).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *gormHistoryRepository) RecentByClient(ctx context.Context, clientID string, limit int) ([]MessageRecord, error) {
	var records []MessageRecord
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
