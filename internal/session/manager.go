package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/expansion"
	"butterfly/internal/metrics"
)

var (
	// ErrNotFound is returned for unknown session ids
	ErrNotFound = errors.New("session not found")

	// ErrTooMany is returned when the session limit is reached
	ErrTooMany = errors.New("too many sessions")

	// ErrInvalidRequest is returned for create requests that fail validation
	ErrInvalidRequest = errors.New("invalid session request")
)

// Seeder resolves an external key into the seed item
type Seeder interface {
	Article(ctx context.Context, externalKey string) (domain.Item, error)
}

// CreateRequest starts a session from an external key, or from an inline
// item when the caller already holds the seed.
type CreateRequest struct {
	ExternalKey string       `json:"external_key,omitempty" validate:"required_without=Item"`
	Item        *domain.Item `json:"item,omitempty" validate:"required_without=ExternalKey"`
}

type entry struct {
	session *Session
	cancel  context.CancelFunc
}

// Manager is the registry of running sessions
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup

	ctx      context.Context
	fetcher  expansion.Fetcher
	seeder   Seeder
	opts     Options
	max      int
	validate *validator.Validate
	metrics  *metrics.Collector
	log      *zap.SugaredLogger
}

// NewManager creates a registry. Sessions live until closed or until ctx is
// cancelled.
func NewManager(ctx context.Context, fetcher expansion.Fetcher, seeder Seeder, opts Options, max int, m *metrics.Collector, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		sessions: make(map[string]*entry),
		ctx:      ctx,
		fetcher:  fetcher,
		seeder:   seeder,
		opts:     opts,
		max:      max,
		validate: validator.New(),
		metrics:  m,
		log:      log,
	}
}

// Create resolves the seed and starts a new session
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create session"), ErrInvalidRequest)
	}

	var seed domain.Item
	if req.Item != nil {
		seed = *req.Item
		if seed.ExternalKey == "" {
			return nil, errors.Mark(errors.New("inline item needs an external_key"), ErrInvalidRequest)
		}
	} else {
		if m.seeder == nil {
			return nil, errors.Mark(errors.New("no seed source configured"), ErrInvalidRequest)
		}
		item, err := m.seeder.Article(ctx, req.ExternalKey)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch seed %s", req.ExternalKey)
		}
		seed = item
	}

	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		return nil, errors.WithHintf(ErrTooMany, "limit is %d", m.max)
	}

	id := uuid.NewString()
	s, err := New(id, seed, m.fetcher, m.opts, m.metrics, m.log)
	if err != nil {
		m.mu.Unlock()
		return nil, errors.Mark(err, ErrInvalidRequest)
	}
	runCtx, cancel := context.WithCancel(m.ctx)
	m.sessions[id] = &entry{session: s, cancel: cancel}
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = s.Run(runCtx)
		m.remove(id)
	}()

	m.log.Infow("Session created", "session", id, "seed", seed.ExternalKey)
	return s, nil
}

// Get looks up a running session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "session %s", id)
	}
	return e.session, nil
}

// Close stops a session and waits for its loop to exit
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrNotFound, "session %s", id)
	}
	e.cancel()
	<-e.session.Done()
	m.remove(id)
	return nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.metrics.SessionClosed()
		m.log.Infow("Session removed", "session", id)
	}
}

// List returns the ids of running sessions, sorted
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of running sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes sessions with no connected clients that have been idle longer
// than idle. It returns how many were closed.
func (m *Manager) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	var stale []*entry
	for _, e := range m.sessions {
		if e.session.Hub().ClientCount() == 0 && !e.session.LastActivity().After(cutoff) {
			stale = append(stale, e)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.cancel()
		<-e.session.Done()
		m.remove(e.session.ID())
	}
	if len(stale) > 0 {
		m.log.Infow("Reaped idle sessions", "count", len(stale))
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is cancelled
func (m *Manager) RunReaper(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(idle)
		}
	}
}

// Shutdown stops every session and waits for all loops to exit
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, e := range m.sessions {
		e.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}
