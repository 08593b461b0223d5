package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRecord is the GORM model for a persisted session. Listing columns
// are denormalized; the full record lives in Document as JSON.
type SessionRecord struct {
	ID        string    `gorm:"primaryKey;size:8"`
	Title     string    `gorm:"size:200"`
	CaseType  string    `gorm:"size:32;not null"`
	UserRole  string    `gorm:"size:16;not null"`
	UserID    string    `gorm:"size:64;index"`
	Status    string    `gorm:"size:16;default:active"`
	Entries   int       `gorm:"not null;default:0"`
	Document  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;index;autoUpdateTime:false"`
}

// TableName pins the table name.
func (SessionRecord) TableName() string { return "sessions" }

// GormBackend implements StorageBackend on a SQL database through GORM.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend migrates the sessions table and returns a backend on db.
func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if db == nil {
		return nil, errors.New("gorm backend: db is required")
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("gorm backend: auto-migrate: %w", err)
	}
	return &GormBackend{db: db}, nil
}

// Load retrieves a session by id.
func (g *GormBackend) Load(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	var rec SessionRecord
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm backend: load %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(rec.Document), &sess); err != nil {
		return nil, fmt.Errorf("gorm backend: decode %s: %w", id, err)
	}
	return &sess, nil
}

// Save upserts the session row.
func (g *GormBackend) Save(ctx context.Context, sess *Session) error {
	if err := ValidateID(sess.ID); err != nil {
		return err
	}

	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("gorm backend: encode %s: %w", sess.ID, err)
	}

	rec := SessionRecord{
		ID:        sess.ID,
		Title:     sess.Title,
		CaseType:  sess.CaseType.Type,
		UserRole:  string(sess.UserRole),
		UserID:    sess.UserID,
		Status:    string(sess.Status),
		Entries:   len(sess.Transcript),
		Document:  string(doc),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}

	result := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "status", "entries", "document", "updated_at"}),
	}).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("gorm backend: save %s: %w", sess.ID, result.Error)
	}
	return nil
}

// Delete removes the session row.
func (g *GormBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	result := g.db.WithContext(ctx).Where("id = ?", id).Delete(&SessionRecord{})
	if result.Error != nil {
		return fmt.Errorf("gorm backend: delete %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List queries summaries directly from the listing columns.
func (g *GormBackend) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	q := g.db.WithContext(ctx).Model(&SessionRecord{}).Order("updated_at DESC, id ASC")
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var recs []SessionRecord
	if err := q.Omit("document").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("gorm backend: list: %w", err)
	}

	out := make([]Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, Summary{
			ID:        r.ID,
			Title:     r.Title,
			CaseType:  r.CaseType,
			UserRole:  Role(r.UserRole),
			Status:    Status(r.Status),
			UserID:    r.UserID,
			Entries:   r.Entries,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// Ping checks the underlying connection.
func (g *GormBackend) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("gorm backend: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op; the *gorm.DB is owned by whoever opened it.
func (g *GormBackend) Close() error {
	return nil
}
