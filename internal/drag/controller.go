// Package drag implements drag-and-drop rescheduling as an explicit state
// machine driven by pointer events.
package drag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/metrics"
)

var (
	ErrDragInProgress = errors.New("a drag is already in progress")
	ErrNotDragging    = errors.New("no drag in progress")
	ErrInvalidTarget  = errors.New("invalid drop target")
)

type State int

const (
	Idle State = iota
	Dragging
	Committing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "dragging":
		*s = Dragging
	case "committing":
		*s = Committing
	default:
		return fmt.Errorf("unknown drag state %q", b)
	}
	return nil
}

// Zone tells the controller which days currently accept drops.
type Zone interface {
	AcceptsDrop(day time.Time) bool
	HasTimeSlots() bool
	Location() *time.Location
}

// Store is the subset of the event store the controller needs.
type Store interface {
	Event(id string) (calendar.Event, bool)
	Update(ctx context.Context, ev calendar.Event) error
}

// Target is a candidate drop position. Minute is minutes after midnight and
// is ignored when HasTime is false.
type Target struct {
	Day     time.Time `json:"day"`
	Minute  int       `json:"minute"`
	HasTime bool      `json:"hasTime"`
}

type Interval struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// Session is a snapshot of the active gesture.
type Session struct {
	State      State          `json:"state"`
	Event      calendar.Event `json:"event"`
	Original   Interval       `json:"original"`
	Proposed   *Interval      `json:"proposed,omitempty"`
	IsDragging bool           `json:"isDragging"`
}

// Result reports how a drop ended.
type Result struct {
	Event     calendar.Event `json:"event"`
	Committed bool           `json:"committed"`
}

// Controller holds at most one drag gesture.
type Controller struct {
	store Store
	grid  Grid
	log   logrus.FieldLogger

	mu       sync.Mutex
	state    State
	eventID  string
	original Interval
	proposed *Interval
}

func New(store Store, grid Grid, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{store: store, grid: grid.withDefaults(), log: log}
}

// Start begins dragging eventID. The event is tracked by id; its interval at
// this moment is the one restored on cancel or failure.
func (c *Controller) Start(eventID string) error {
	ev, ok := c.store.Event(eventID)
	if !ok {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return fmt.Errorf("%w: %s is %s", ErrDragInProgress, c.eventID, c.state)
	}
	c.state = Dragging
	c.eventID = eventID
	c.original = Interval{Start: ev.Start, End: ev.End}
	c.proposed = nil
	return nil
}

// Hover computes the interval the event would take if dropped on t.
func (c *Controller) Hover(zone Zone, t Target) (Interval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return Interval{}, ErrNotDragging
	}
	p, err := c.propose(zone, t)
	if err != nil {
		c.proposed = nil
		return Interval{}, err
	}
	c.proposed = &p
	return p, nil
}

// Drop ends the gesture. A nil or unacceptable target cancels it without a
// mutation. Otherwise the new interval is committed through the store; on
// failure the stored interval is left untouched and the error wraps
// calendar.ErrMutationFailed.
func (c *Controller) Drop(ctx context.Context, zone Zone, t *Target) (Result, error) {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return Result{}, ErrNotDragging
	}
	id := c.eventID
	var proposal Interval
	var err error
	if t == nil {
		err = ErrInvalidTarget
	} else {
		proposal, err = c.propose(zone, *t)
	}
	if err != nil {
		c.reset()
		c.mu.Unlock()
		metrics.RecordDrag("cancelled")
		c.log.WithField("event_id", id).Debug("drag dropped outside a valid target")
		ev, _ := c.store.Event(id)
		return Result{Event: ev}, nil
	}
	c.state = Committing
	c.proposed = &proposal
	c.mu.Unlock()

	ev, ok := c.store.Event(id)
	if !ok {
		c.finish()
		metrics.RecordDrag("failed")
		return Result{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, id)
	}
	ev.Start, ev.End = proposal.Start, proposal.End

	// Committed requests run to completion even if the caller goes away.
	err = c.store.Update(context.WithoutCancel(ctx), ev)
	c.finish()
	if err != nil {
		metrics.RecordDrag("failed")
		c.log.WithError(err).WithField("event_id", id).Warn("drag reschedule rejected, reverting")
		current, _ := c.store.Event(id)
		return Result{Event: current}, err
	}
	metrics.RecordDrag("committed")
	c.log.WithFields(logrus.Fields{"event_id": id, "start": ev.Start, "end": ev.End}).Info("event rescheduled")
	return Result{Event: ev, Committed: true}, nil
}

// Cancel aborts a drag that has not been committed.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Idle:
		return ErrNotDragging
	case Committing:
		return fmt.Errorf("%w: commit already issued", ErrDragInProgress)
	}
	c.reset()
	metrics.RecordDrag("cancelled")
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active gesture, if any. The event reflects the store's
// current copy.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return Session{}, false
	}
	s := Session{State: c.state, Original: c.original, IsDragging: c.state == Dragging}
	if c.proposed != nil {
		p := *c.proposed
		s.Proposed = &p
	}
	id := c.eventID
	c.mu.Unlock()

	s.Event, _ = c.store.Event(id)
	return s, true
}

// propose must be called with c.mu held.
func (c *Controller) propose(zone Zone, t Target) (Interval, error) {
	if zone == nil || t.Day.IsZero() || !zone.AcceptsDrop(t.Day) {
		return Interval{}, ErrInvalidTarget
	}
	loc := zone.Location()
	duration := c.original.End.Sub(c.original.Start)

	var start time.Time
	if t.HasTime && zone.HasTimeSlots() {
		if t.Minute < 0 || t.Minute >= minutesPerDay {
			return Interval{}, fmt.Errorf("%w: minute %d", ErrInvalidTarget, t.Minute)
		}
		inc := c.grid.IncrementFor(c.original.Start.In(loc), duration)
		start = at(t.Day, SnapMinute(t.Minute, inc), loc)
	} else {
		start = keepTimeOfDay(t.Day, c.original.Start, loc)
	}
	return Interval{Start: start, End: start.Add(duration)}, nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}

// reset must be called with c.mu held.
func (c *Controller) reset() {
	c.state = Idle
	c.eventID = ""
	c.original = Interval{}
	c.proposed = nil
}
