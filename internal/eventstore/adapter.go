// Package eventstore keeps the canonical in-memory copy of a session's events
// and forwards every mutation to the persistence backend.
package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/metrics"
)

// NewEvent is the payload of an add request.
type NewEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Color       calendar.Color
	OwnerUserID string
}

// Validate checks the add request before it reaches the backend.
func (n NewEvent) Validate() error {
	return calendar.Event{Start: n.Start, End: n.End, Color: n.Color}.Validate()
}

// Backend is the persistence collaborator.
type Backend interface {
	Load(ctx context.Context, viewerID string) ([]calendar.Event, []calendar.User, error)
	AddEvent(ctx context.Context, ev NewEvent) (string, error)
	UpdateEvent(ctx context.Context, ev calendar.Event) error
	// RemoveEvent deletes ev.ID if it is still owned by ev.OwnerUserID.
	RemoveEvent(ctx context.Context, ev calendar.Event) error
}

// Adapter owns the session's event list. Local state changes only after the
// backend confirms a mutation. Mutations of one event id run in submission
// order; different ids proceed independently.
type Adapter struct {
	backend Backend
	log     logrus.FieldLogger

	mu     sync.RWMutex
	events []calendar.Event
	users  []calendar.User

	queueMu sync.Mutex
	tails   map[string]chan struct{}
}

func New(backend Backend, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{backend: backend, log: log, tails: make(map[string]chan struct{})}
}

// Load replaces the local copy with the viewer's events and users.
func (a *Adapter) Load(ctx context.Context, viewerID string) error {
	events, users, err := a.backend.Load(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("load events for %s: %w", viewerID, err)
	}
	a.mu.Lock()
	a.events = append([]calendar.Event(nil), events...)
	a.users = append([]calendar.User(nil), users...)
	a.mu.Unlock()
	a.log.WithFields(logrus.Fields{"viewer": viewerID, "events": len(events), "users": len(users)}).Debug("event store loaded")
	return nil
}

// Events returns a copy of every event.
func (a *Adapter) Events() []calendar.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]calendar.Event(nil), a.events...)
}

// Users returns a copy of the reference users.
func (a *Adapter) Users() []calendar.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]calendar.User(nil), a.users...)
}

// Event looks up one event by id.
func (a *Adapter) Event(id string) (calendar.Event, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i := a.indexOf(id)
	if i < 0 {
		return calendar.Event{}, false
	}
	return a.events[i], true
}

// Add validates and persists a new event, then appends it locally.
func (a *Adapter) Add(ctx context.Context, n NewEvent) (calendar.Event, error) {
	if err := n.Validate(); err != nil {
		return calendar.Event{}, err
	}
	id, err := a.backend.AddEvent(ctx, n)
	metrics.RecordMutation("add", err)
	if err != nil {
		a.log.WithError(err).WithField("title", n.Title).Warn("add event rejected")
		return calendar.Event{}, fmt.Errorf("%w: add: %w", calendar.ErrMutationFailed, err)
	}
	ev := calendar.Event{
		ID:          id,
		Title:       n.Title,
		Description: n.Description,
		Start:       n.Start,
		End:         n.End,
		Color:       n.Color.OrDefault(),
		OwnerUserID: n.OwnerUserID,
	}
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
	return ev, nil
}

// Update validates and persists ev, replacing the local copy on success.
func (a *Adapter) Update(ctx context.Context, ev calendar.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	ev.Color = ev.Color.OrDefault()
	if _, ok := a.Event(ev.ID); !ok {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, ev.ID)
	}

	return a.serialize(ctx, ev.ID, func() error {
		err := a.backend.UpdateEvent(ctx, ev)
		metrics.RecordMutation("update", err)
		if err != nil {
			a.log.WithError(err).WithField("event_id", ev.ID).Warn("update event rejected")
			return fmt.Errorf("%w: update %s: %w", calendar.ErrMutationFailed, ev.ID, err)
		}
		a.mu.Lock()
		if i := a.indexOf(ev.ID); i >= 0 {
			a.events[i] = ev
		}
		a.mu.Unlock()
		return nil
	})
}

// Remove deletes the event from the backend and then locally.
func (a *Adapter) Remove(ctx context.Context, id string) error {
	ev, ok := a.Event(id)
	if !ok {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, id)
	}

	return a.serialize(ctx, id, func() error {
		err := a.backend.RemoveEvent(ctx, ev)
		metrics.RecordMutation("remove", err)
		if err != nil {
			a.log.WithError(err).WithField("event_id", id).Warn("remove event rejected")
			return fmt.Errorf("%w: remove %s: %w", calendar.ErrMutationFailed, id, err)
		}
		a.mu.Lock()
		if i := a.indexOf(id); i >= 0 {
			a.events = append(a.events[:i], a.events[i+1:]...)
		}
		a.mu.Unlock()
		return nil
	})
}

// serialize runs fn after every earlier request for id has finished.
func (a *Adapter) serialize(ctx context.Context, id string, fn func() error) error {
	a.queueMu.Lock()
	prev := a.tails[id]
	mine := make(chan struct{})
	a.tails[id] = mine
	a.queueMu.Unlock()

	release := func() {
		close(mine)
		a.queueMu.Lock()
		if a.tails[id] == mine {
			delete(a.tails, id)
		}
		a.queueMu.Unlock()
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Later requests queued behind this one still wait for prev.
			go func() {
				<-prev
				release()
			}()
			return ctx.Err()
		}
	}
	defer release()
	return fn()
}

// indexOf must be called with a.mu held.
func (a *Adapter) indexOf(id string) int {
	for i := range a.events {
		if a.events[i].ID == id {
			return i
		}
	}
	return -1
}
