package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/eventstore"
	"github.com/jw6ventures/studycal/internal/prefs"
)

// Pool is the subset of pgxpool.Pool used by the repositories.
type Pool interface {
	PgxPool
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

var (
	_ eventstore.Backend = (*Store)(nil)
	_ prefs.KV           = settingsKV{}
)

// Store aggregates repositories backed by PostgreSQL and serves as the
// calendar's persistence backend.
type Store struct {
	pool Pool

	Users    UserRepository
	Events   EventRepository
	Shares   ShareRepository
	Settings SettingsRepository
}

// New wires concrete repository implementations with shared connection pool.
// Event times are read back as wall-clock values in loc.
func New(pool Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		pool:     pool,
		Users:    &userRepo{pool: pool},
		Events:   &eventRepo{pool: pool, loc: loc},
		Shares:   &shareRepo{pool: pool},
		Settings: &settingsRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}

// Load returns the events and users visible to viewerID.
func (s *Store) Load(ctx context.Context, viewerID string) ([]calendar.Event, []calendar.User, error) {
	events, err := s.Events.ListVisible(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.Users.ListVisible(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}
	return events, users, nil
}

// AddEvent stores a new event under a fresh UUID.
func (s *Store) AddEvent(ctx context.Context, n eventstore.NewEvent) (string, error) {
	id := uuid.NewString()
	err := s.Events.Insert(ctx, calendar.Event{
		ID:          id,
		Title:       n.Title,
		Description: n.Description,
		Start:       n.Start,
		End:         n.End,
		Color:       n.Color,
		OwnerUserID: n.OwnerUserID,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateEvent(ctx context.Context, ev calendar.Event) error {
	if _, err := uuid.Parse(ev.ID); err != nil {
		return fmt.Errorf("%w: event %q", ErrNotFound, ev.ID)
	}
	return s.Events.Update(ctx, ev)
}

func (s *Store) RemoveEvent(ctx context.Context, ev calendar.Event) error {
	if _, err := uuid.Parse(ev.ID); err != nil {
		return fmt.Errorf("%w: event %q", ErrNotFound, ev.ID)
	}
	return s.Events.Delete(ctx, ev.ID, ev.OwnerUserID)
}

// SettingsKV exposes the settings table as a preferences key-value store.
func (s *Store) SettingsKV() prefs.KV {
	return settingsKV{repo: s.Settings}
}

type settingsKV struct {
	repo SettingsRepository
}

func (k settingsKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := k.repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, prefs.ErrNotFound
	}
	return value, err
}

func (k settingsKV) Put(ctx context.Context, key string, value []byte) error {
	return k.repo.Put(ctx, key, value)
}
