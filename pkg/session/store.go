package session

import (
	"context"
	"errors"
	"sort"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidID is returned for ids that are not 8 lowercase hex characters.
	ErrInvalidID = errors.New("invalid session id: must match ^[a-f0-9]{8}$")
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
)

// StorageBackend abstracts session persistence.
// Implementations must be safe for concurrent use and must validate ids with
// ValidateID before using them.
type StorageBackend interface {
	// Load retrieves a session by id.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Load(ctx context.Context, id string) (*Session, error)

	// Save creates or replaces a session record.
	Save(ctx context.Context, sess *Session) error

	// Delete removes a session.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns session summaries matching the filter options, most recently updated first.
	List(ctx context.Context, opts ListOptions) ([]Summary, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// ListOptions provides filtering for session listing.
type ListOptions struct {
	// UserID filters sessions by owner.
	UserID string
	// Limit caps the number of results.
	Limit int
	// Offset skips the first N results.
	Offset int
}

// apply filters, sorts and pages summaries in place.
func (o ListOptions) apply(all []Summary) []Summary {
	out := all[:0]
	for _, s := range all {
		if o.UserID != "" && s.UserID != o.UserID {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if o.Offset > 0 {
		if o.Offset >= len(out) {
			return []Summary{}
		}
		out = out[o.Offset:]
	}
	if o.Limit > 0 && o.Limit < len(out) {
		out = out[:o.Limit]
	}
	return out
}
