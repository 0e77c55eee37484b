// Package session ties one user's event store, view state and drag gesture
// together and keeps them in memory between requests.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/drag"
	"github.com/jw6ventures/studycal/internal/eventstore"
	"github.com/jw6ventures/studycal/internal/metrics"
	"github.com/jw6ventures/studycal/internal/prefs"
	"github.com/jw6ventures/studycal/internal/view"
)

// Session is the calendar context of one signed-in user. View and drag state
// change under one lock; backend round-trips for events run outside it.
type Session struct {
	userID string
	now    func() time.Time

	events *eventstore.Adapter
	drag   *drag.Controller

	mu       sync.Mutex
	view     *view.Controller
	lastSeen time.Time
}

// Snapshot is everything a client needs to draw the calendar.
type Snapshot struct {
	State view.State      `json:"state"`
	Model view.Model      `json:"model"`
	Users []calendar.User `json:"users"`
	Drag  *drag.Session   `json:"drag,omitempty"`
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Snapshot renders the current view.
func (s *Session) Snapshot() Snapshot {
	events := s.events.Events()
	s.mu.Lock()
	start := time.Now()
	snap := Snapshot{State: s.view.State(), Model: s.view.Render(events), Users: s.events.Users()}
	metrics.ObserveRender(string(snap.State.View), start)
	s.mu.Unlock()
	if d, ok := s.drag.Session(); ok {
		snap.Drag = &d
	}
	return snap
}

func (s *Session) State() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.State()
}

// Range is the visible range of the current view.
func (s *Session) Range() view.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Range()
}

func (s *Session) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Location()
}

func (s *Session) SetView(ctx context.Context, v prefs.ViewMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.SetView(ctx, v)
}

func (s *Session) SetSelectedDate(d *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetSelectedDate(d)
}

func (s *Session) Navigate(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Navigate(step)
}

func (s *Session) Today() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Today()
}

func (s *Session) ApplyPreferences(ctx context.Context, patch prefs.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.ApplyPreferences(ctx, patch)
}

func (s *Session) ToggleColor(c calendar.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ToggleColor(c)
}

func (s *Session) SelectUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SelectUser(id)
}

func (s *Session) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ClearFilters()
}

// Events returns the events visible under the current filters.
func (s *Session) Events() []calendar.Event {
	all := s.events.Events()
	s.mu.Lock()
	f := s.view.Filters()
	s.mu.Unlock()
	return calendar.VisibleEvents(all, f)
}

func (s *Session) Event(id string) (calendar.Event, bool) {
	return s.events.Event(id)
}

// AddEvent creates an event owned by the session's user. Events cannot be
// created on another user's behalf.
func (s *Session) AddEvent(ctx context.Context, n eventstore.NewEvent) (calendar.Event, error) {
	if n.OwnerUserID != "" && n.OwnerUserID != s.userID {
		return calendar.Event{}, fmt.Errorf("%w: cannot create events for %s", calendar.ErrForbidden, n.OwnerUserID)
	}
	n.OwnerUserID = s.userID
	return s.events.Add(ctx, n)
}

// UpdateEvent replaces one of the user's own events. Shared events are read
// only and ownership cannot be transferred.
func (s *Session) UpdateEvent(ctx context.Context, ev calendar.Event) error {
	if _, err := s.owned(ev.ID); err != nil {
		return err
	}
	if ev.OwnerUserID != "" && ev.OwnerUserID != s.userID {
		return fmt.Errorf("%w: cannot reassign %s to %s", calendar.ErrForbidden, ev.ID, ev.OwnerUserID)
	}
	ev.OwnerUserID = s.userID
	return s.events.Update(ctx, ev)
}

func (s *Session) RemoveEvent(ctx context.Context, id string) error {
	if _, err := s.owned(id); err != nil {
		return err
	}
	return s.events.Remove(ctx, id)
}

func (s *Session) StartDrag(eventID string) error {
	if _, err := s.owned(eventID); err != nil {
		return err
	}
	return s.drag.Start(eventID)
}

// owned returns the event if the session's user owns it.
func (s *Session) owned(id string) (calendar.Event, error) {
	ev, ok := s.events.Event(id)
	if !ok {
		return calendar.Event{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, id)
	}
	if ev.OwnerUserID != s.userID {
		return calendar.Event{}, fmt.Errorf("%w: %s", calendar.ErrForbidden, id)
	}
	return ev, nil
}

func (s *Session) HoverDrag(t drag.Target) (drag.Interval, error) {
	return s.drag.Hover(s.dropZone(), t)
}

// Drop commits or cancels the active drag. The drop zone is captured before
// the commit so the view lock is not held across the backend call.
func (s *Session) Drop(ctx context.Context, t *drag.Target) (drag.Result, error) {
	return s.drag.Drop(ctx, s.dropZone(), t)
}

func (s *Session) CancelDrag() error {
	return s.drag.Cancel()
}

func (s *Session) DragSession() (drag.Session, bool) {
	return s.drag.Session()
}

func (s *Session) dropZone() view.DropZone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.DropZone()
}
