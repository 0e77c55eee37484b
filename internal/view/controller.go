// Package view owns the calendar view state (mode, selected date, filters,
// display preferences) and derives what should be rendered for it.
package view

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/layout"
	"github.com/jw6ventures/studycal/internal/prefs"
)

// DefaultAgendaHorizonDays is the agenda length when none is configured.
const DefaultAgendaHorizonDays = 30

// Saver persists preference changes.
type Saver interface {
	Save(ctx context.Context, patch prefs.Patch) error
}

// Config holds the static parameters of a controller.
type Config struct {
	WeekStart         time.Weekday
	AgendaHorizonDays int
	Layout            layout.Options
	Location          *time.Location
	Now               func() time.Time
}

// State is the externally visible view state.
type State struct {
	View            prefs.ViewMode      `json:"view"`
	SelectedDate    time.Time           `json:"selectedDate"`
	SelectedUserID  string              `json:"selectedUserId"`
	SelectedColors  []calendar.Color    `json:"selectedColors"`
	Use24HourFormat bool                `json:"use24HourFormat"`
	BadgeVariant    prefs.BadgeVariant  `json:"badgeVariant"`
	AgendaGroupBy   prefs.AgendaGroupBy `json:"agendaModeGroupBy"`
}

// Controller is the view-mode state machine. It is not safe for concurrent
// use; callers serialize access.
type Controller struct {
	cfg   Config
	saver Saver
	log   logrus.FieldLogger

	prefs        prefs.Preferences
	selectedDate time.Time
	filters      calendar.Filters
}

// NewController starts from the loaded preferences with today selected.
func NewController(cfg Config, initial prefs.Preferences, saver Saver, log logrus.FieldLogger) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AgendaHorizonDays <= 0 {
		cfg.AgendaHorizonDays = DefaultAgendaHorizonDays
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	initial = prefs.Defaults().Apply(prefs.Patch{
		BadgeVariant:    &initial.BadgeVariant,
		View:            &initial.View,
		Use24HourFormat: &initial.Use24HourFormat,
		AgendaGroupBy:   &initial.AgendaGroupBy,
	})
	return &Controller{
		cfg:          cfg,
		saver:        saver,
		log:          log,
		prefs:        initial,
		selectedDate: calendar.StartOfDay(cfg.Now().In(cfg.Location)),
		filters:      calendar.NewFilters(),
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	return State{
		View:            c.prefs.View,
		SelectedDate:    c.selectedDate,
		SelectedUserID:  c.filters.UserID(),
		SelectedColors:  c.filters.Colors(),
		Use24HourFormat: c.prefs.Use24HourFormat,
		BadgeVariant:    c.prefs.BadgeVariant,
		AgendaGroupBy:   c.prefs.AgendaGroupBy,
	}
}

// Filters returns the active filters.
func (c *Controller) Filters() calendar.Filters {
	return c.filters
}

// SetView switches the view mode and persists it. The selected date is kept.
func (c *Controller) SetView(ctx context.Context, v prefs.ViewMode) error {
	if !v.Valid() {
		return fmt.Errorf("%w: view %q", prefs.ErrInvalidPreference, v)
	}
	c.prefs.View = v
	c.persist(ctx, prefs.Patch{View: &v})
	return nil
}

// SetSelectedDate replaces the reference date; nil is ignored.
func (c *Controller) SetSelectedDate(d *time.Time) {
	if d == nil {
		return
	}
	c.selectedDate = calendar.StartOfDay(d.In(c.cfg.Location))
}

// Navigate moves the selected date by step units of the current view.
func (c *Controller) Navigate(step int) {
	switch c.prefs.View {
	case prefs.ViewDay:
		c.selectedDate = c.selectedDate.AddDate(0, 0, step)
	case prefs.ViewWeek:
		c.selectedDate = c.selectedDate.AddDate(0, 0, 7*step)
	default:
		c.selectedDate = addMonths(c.selectedDate, step)
	}
}

// Today selects the current date.
func (c *Controller) Today() {
	c.selectedDate = calendar.StartOfDay(c.cfg.Now().In(c.cfg.Location))
}

func (c *Controller) SetUse24HourFormat(ctx context.Context, on bool) {
	c.prefs.Use24HourFormat = on
	c.persist(ctx, prefs.Patch{Use24HourFormat: &on})
}

func (c *Controller) SetBadgeVariant(ctx context.Context, b prefs.BadgeVariant) error {
	if !b.Valid() {
		return fmt.Errorf("%w: badgeVariant %q", prefs.ErrInvalidPreference, b)
	}
	c.prefs.BadgeVariant = b
	c.persist(ctx, prefs.Patch{BadgeVariant: &b})
	return nil
}

func (c *Controller) SetAgendaGroupBy(ctx context.Context, g prefs.AgendaGroupBy) error {
	if !g.Valid() {
		return fmt.Errorf("%w: agendaModeGroupBy %q", prefs.ErrInvalidPreference, g)
	}
	c.prefs.AgendaGroupBy = g
	c.persist(ctx, prefs.Patch{AgendaGroupBy: &g})
	return nil
}

// ApplyPreferences applies a validated patch and persists it as one write.
func (c *Controller) ApplyPreferences(ctx context.Context, patch prefs.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	c.prefs = c.prefs.Apply(patch)
	c.persist(ctx, patch)
	return nil
}

// ToggleColor adds or removes a color filter.
func (c *Controller) ToggleColor(color calendar.Color) {
	c.filters.ToggleColor(color)
}

// SelectUser sets the user filter.
func (c *Controller) SelectUser(id string) {
	c.filters.SelectUser(id)
}

// ClearFilters resets color and user filters.
func (c *Controller) ClearFilters() {
	c.filters.Clear()
}

// persist writes preference changes; a failing store never blocks the UI.
func (c *Controller) persist(ctx context.Context, patch prefs.Patch) {
	if c.saver == nil {
		return
	}
	if err := c.saver.Save(ctx, patch); err != nil {
		c.log.WithError(err).Warn("failed to persist calendar preferences")
	}
}

// Range derives the visible date range for the current mode.
func (c *Controller) Range() Range {
	switch c.prefs.View {
	case prefs.ViewWeek:
		return WeekRange(c.selectedDate, c.cfg.WeekStart)
	case prefs.ViewMonth:
		return MonthGrid(c.selectedDate, c.cfg.WeekStart)
	case prefs.ViewAgenda:
		return AgendaRange(c.selectedDate, c.cfg.AgendaHorizonDays)
	default:
		return DayRange(c.selectedDate)
	}
}

// AcceptsDrop reports whether day is a valid drop target in the current view.
func (c *Controller) AcceptsDrop(day time.Time) bool {
	return c.DropZone().AcceptsDrop(day)
}

// HasTimeSlots reports whether drop targets carry a time of day.
func (c *Controller) HasTimeSlots() bool {
	return c.prefs.View == prefs.ViewDay || c.prefs.View == prefs.ViewWeek
}

// Location returns the wall-clock location of the calendar.
func (c *Controller) Location() *time.Location {
	return c.cfg.Location
}

// DropZone captures the current drop targets so they can be checked after the
// controller has moved on.
func (c *Controller) DropZone() DropZone {
	return DropZone{
		Range:     c.Range(),
		Disabled:  c.prefs.View == prefs.ViewAgenda,
		TimeSlots: c.HasTimeSlots(),
		Loc:       c.cfg.Location,
	}
}

// DropZone is an immutable snapshot of where a dragged event may land.
type DropZone struct {
	Range     Range
	Disabled  bool
	TimeSlots bool
	Loc       *time.Location
}

func (z DropZone) AcceptsDrop(day time.Time) bool {
	if z.Disabled {
		return false
	}
	return z.Range.Contains(calendar.StartOfDay(day.In(z.Location())))
}

func (z DropZone) HasTimeSlots() bool {
	return z.TimeSlots
}

func (z DropZone) Location() *time.Location {
	if z.Loc == nil {
		return time.Local
	}
	return z.Loc
}
