package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/drag"
	"github.com/jw6ventures/studycal/internal/eventstore"
	"github.com/jw6ventures/studycal/internal/metrics"
	"github.com/jw6ventures/studycal/internal/prefs"
	"github.com/jw6ventures/studycal/internal/view"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultSweepSpec   = "@every 5m"
)

type Config struct {
	View        view.Config
	Snap        drag.Grid
	IdleTimeout time.Duration
	SweepSpec   string
}

// Manager opens sessions on first use and evicts idle ones.
type Manager struct {
	cfg     Config
	backend eventstore.Backend
	kv      prefs.KV
	log     logrus.FieldLogger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	cron *cron.Cron
}

func NewManager(cfg Config, backend eventstore.Backend, kv prefs.KV, log logrus.FieldLogger) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = DefaultSweepSpec
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := cfg.View.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		cfg:      cfg,
		backend:  backend,
		kv:       kv,
		log:      log,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, loading events and preferences the first
// time it is requested.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		s.touch()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.open(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		existing.touch()
		return existing, nil
	}
	m.sessions[userID] = s
	metrics.SetActiveSessions(len(m.sessions))
	return s, nil
}

func (m *Manager) open(ctx context.Context, userID string) (*Session, error) {
	log := m.log.WithField("user_id", userID)

	events := eventstore.New(m.backend, log)
	if err := events.Load(ctx, userID); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	store := prefs.NewStore(m.kv, prefs.ScopedKey(userID), log)
	initial := store.Load(ctx)

	log.WithField("view", initial.View).Info("calendar session opened")
	return &Session{
		userID:   userID,
		now:      m.now,
		events:   events,
		drag:     drag.New(events, m.cfg.Snap, log),
		view:     view.NewController(m.cfg.View, initial, store, log),
		lastSeen: m.now(),
	}, nil
}

// Drop discards a user's session so the next Get reloads it.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	metrics.SetActiveSessions(len(m.sessions))
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the idle timeout. Sessions with
// a drag in flight are kept.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if !s.idleSince().Before(cutoff) {
			continue
		}
		if s.drag.State() != drag.Idle {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	metrics.SetActiveSessions(len(m.sessions))
	if evicted > 0 {
		m.log.WithFields(logrus.Fields{"evicted": evicted, "open": len(m.sessions)}).Info("evicted idle calendar sessions")
	}
	return evicted
}

// StartSweeper schedules Sweep on the configured cron spec.
func (m *Manager) StartSweeper() error {
	c := cron.New()
	if _, err := c.AddFunc(m.cfg.SweepSpec, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", m.cfg.SweepSpec, err)
	}
	m.cron = c
	c.Start()
	m.log.WithField("schedule", m.cfg.SweepSpec).Info("session sweeper started")
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (m *Manager) Stop(ctx context.Context) {
	if m.cron == nil {
		return
	}
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
	}
}
