package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrManagerClosed is returned by Acquire after Close
var ErrManagerClosed = errors.New("session manager closed")

// Manager keeps one session per signed-in user for the gateway
type Manager struct {
	stores Stores
	opts   Options
	logger *logrus.Entry

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	closed   bool

	catalogMu sync.Mutex
	catalog   *Session
}

type entry struct {
	ready   chan struct{}
	session *Session
	err     error
}

// NewManager creates a manager whose sessions share stores
func NewManager(stores Stores, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		stores:   stores,
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// Acquire returns the user's session, starting it on first use. Concurrent
// callers for the same user wait for the one start in progress.
func (m *Manager) Acquire(ctx context.Context, userID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	if e, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
			return e.session, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e := &entry{ready: make(chan struct{})}
	m.sessions[userID] = e
	m.mu.Unlock()

	opts := m.opts
	opts.Logger = m.logger.WithField("user_id", userID)
	sess := New(m.stores, opts)
	err := sess.Start(ctx, userID)

	m.mu.Lock()
	if err != nil {
		if m.sessions[userID] == e {
			delete(m.sessions, userID)
		}
		e.err = err
	} else {
		e.session = sess
	}
	close(e.ready)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the user's started session
func (m *Manager) Get(userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	select {
	case <-e.ready:
		return e.session, e.session != nil
	default:
		return nil, false
	}
}

// Release ends the user's session
func (m *Manager) Release(userID uuid.UUID) bool {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	<-e.ready
	if e.session == nil {
		return false
	}
	e.session.End()
	return true
}

// Count returns the number of started or starting sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Catalog returns the shared unauthenticated session holding the product
// list. A failed load is retried on the next call.
func (m *Manager) Catalog(ctx context.Context) (*Session, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	if m.catalog == nil {
		opts := m.opts
		opts.Logger = m.logger.WithField("session", "catalog")
		m.catalog = New(m.stores, opts)
	}
	if err := m.catalog.LoadCatalog(ctx); err != nil {
		return nil, err
	}
	return m.catalog, nil
}

// Close ends every session and rejects further Acquire calls
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		entries = append(entries, e)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			<-e.ready
			if e.session != nil {
				e.session.End()
			}
		}(e)
	}
	wg.Wait()
	m.logger.WithField("sessions", len(entries)).Info("Session manager closed")
}
