package analytics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventRecord is the analytics_events row.
type EventRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Type       string `gorm:"size:32;index"`
	SessionID  string `gorm:"size:8;index"`
	UserID     string `gorm:"size:64;index"`
	UserRole   string `gorm:"size:16"`
	Action     string `gorm:"size:16"`
	Relevant   bool
	Responses  int
	Fallbacks  int
	DurationMs int64
	Detail     string `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName sets the table name.
func (EventRecord) TableName() string { return "analytics_events" }

// GormSink stores events in a SQL table.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink migrates the analytics table.
func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("analytics: migrate: %w", err)
	}
	return &GormSink{db: db}, nil
}

// Write inserts events in one batch.
func (s *GormSink) Write(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]EventRecord, len(events))
	for i, e := range events {
		rows[i] = EventRecord{
			Type:       string(e.Type),
			SessionID:  e.SessionID,
			UserID:     e.UserID,
			UserRole:   e.UserRole,
			Action:     e.Action,
			Relevant:   e.Relevant,
			Responses:  e.Responses,
			Fallbacks:  e.Fallbacks,
			DurationMs: e.Duration.Milliseconds(),
			Detail:     e.Detail,
			CreatedAt:  e.Timestamp,
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("analytics: insert: %w", err)
	}
	return nil
}

// Count returns the number of stored events of type t, or all events when t
// is empty.
func (s *GormSink) Count(ctx context.Context, t EventType) (int64, error) {
	q := s.db.WithContext(ctx).Model(&EventRecord{})
	if t != "" {
		q = q.Where("type = ?", string(t))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("analytics: count: %w", err)
	}
	return n, nil
}

// Close leaves the shared database open.
func (s *GormSink) Close() error { return nil }
