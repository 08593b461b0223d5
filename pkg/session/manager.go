package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// CreateRequest describes a new session.
type CreateRequest struct {
	Title        string
	CaseFacts    string
	UserRole     Role
	CaseType     CaseType
	Participants []string
	UserID       string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithOpening selects how new transcripts are seeded.
func WithOpening(o Opening) ManagerOption {
	return func(m *Manager) { m.opening = o }
}

// WithIDGenerator overrides NewID.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

type cacheEntry struct {
	sess     *Session
	lastUsed time.Time
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the session cache in front of a StorageBackend and
// serializes mutations per session id. Different ids proceed concurrently.
// Manager is safe for concurrent use.
type Manager struct {
	store   StorageBackend
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	opening Opening

	mu    sync.Mutex
	cache map[string]*cacheEntry

	locksMu sync.Mutex
	locks   map[string]*idLock
}

// NewManager creates a manager over store.
func NewManager(store StorageBackend, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		newID:   NewID,
		opening: OpeningBrief,
		cache:   make(map[string]*cacheEntry),
		locks:   make(map[string]*idLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session-manager")
	return m
}

// Store returns the underlying backend.
func (m *Manager) Store() StorageBackend {
	return m.store
}

func (m *Manager) lock(id string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &idLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

// Create builds a session with a seeded transcript and persists it.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	role, err := ParseRole(string(req.UserRole))
	if err != nil {
		return nil, err
	}
	caseType, err := req.CaseType.Normalize()
	if err != nil {
		return nil, err
	}

	id, err := m.freshID(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sess := &Session{
		ID:           id,
		Title:        req.Title,
		CaseFacts:    req.CaseFacts,
		UserRole:     role,
		CaseType:     caseType,
		Participants: append([]string(nil), req.Participants...),
		Status:       StatusActive,
		UserID:       req.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.opening.seed(sess, now)

	unlock := m.lock(id)
	defer unlock()

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}
	m.put(sess)

	m.logger.Info("session created", "session_id", id, "role", role, "case_type", caseType.Type)
	return sess.Clone(), nil
}

func (m *Manager) freshID(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		id := m.newID()
		if err := ValidateID(id); err != nil {
			return "", err
		}
		if m.cached(id) != nil {
			continue
		}
		_, err := m.store.Load(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check session id: %w", err)
		}
	}
	return "", errors.New("could not allocate a unique session id")
}

// Get returns a private copy of the session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Update runs fn on a private copy of the session while holding the id's
// lock, persists the result and then swaps it into the cache. If fn fails
// nothing changes. A failed save is logged and the updated session is still
// returned and cached.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	unlock := m.lock(id)
	defer unlock()

	current, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if err := m.store.Save(ctx, next); err != nil {
		m.logger.Error("session save failed", "session_id", id, "error", err)
	}
	m.put(next)
	return next.Clone(), nil
}

// Delete removes the session from the store and the cache.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	unlock := m.lock(id)
	defer unlock()

	err := m.store.Delete(ctx, id)
	wasCached := m.drop(id)
	if errors.Is(err, ErrSessionNotFound) && wasCached {
		err = nil
	}
	if err != nil {
		return err
	}
	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// List returns summaries from the store, newest first.
func (m *Manager) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	return m.store.List(ctx, opts)
}

// Cached reports the number of sessions held in memory.
func (m *Manager) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// Evict drops cache entries unused for longer than idle and returns how many
// were removed. Stored records are untouched.
func (m *Manager) Evict(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.cache {
		if e.lastUsed.Before(cutoff) {
			delete(m.cache, id)
			n++
		}
	}
	return n
}

// Close releases the backend.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.cache = make(map[string]*cacheEntry)
	m.mu.Unlock()
	return m.store.Close()
}

// load returns the shared cached record; callers must not mutate it.
func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	if sess := m.cached(id); sess != nil {
		return sess, nil
	}

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.cache[id]; ok {
		e.lastUsed = m.now()
		return e.sess, nil
	}
	m.cache[id] = &cacheEntry{sess: sess, lastUsed: m.now()}
	return sess, nil
}

func (m *Manager) cached(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[id]
	if !ok {
		return nil
	}
	e.lastUsed = m.now()
	return e.sess
}

func (m *Manager) put(sess *Session) {
	m.mu.Lock()
	m.cache[sess.ID] = &cacheEntry{sess: sess, lastUsed: m.now()}
	m.mu.Unlock()
}

func (m *Manager) drop(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cache[id]
	delete(m.cache, id)
	return ok
}
