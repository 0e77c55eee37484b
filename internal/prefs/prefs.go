// Package prefs persists per-user calendar display preferences as a single
// JSON blob in a pluggable key-value store.
package prefs

import (
	"errors"
	"fmt"
)

// SettingsKey is the key of the preferences blob.
const SettingsKey = "calendar-settings"

// ScopedKey returns the settings key of one user.
func ScopedKey(userID string) string {
	return "users/" + userID + "/" + SettingsKey
}

// ErrInvalidPreference is returned for values outside the allowed enumerations.
var ErrInvalidPreference = errors.New("invalid preference value")

// ViewMode selects the calendar view.
type ViewMode string

const (
	ViewDay    ViewMode = "day"
	ViewWeek   ViewMode = "week"
	ViewMonth  ViewMode = "month"
	ViewAgenda ViewMode = "agenda"
)

func (v ViewMode) Valid() bool {
	switch v {
	case ViewDay, ViewWeek, ViewMonth, ViewAgenda:
		return true
	}
	return false
}

// ParseViewMode validates s as a view mode.
func ParseViewMode(s string) (ViewMode, error) {
	v := ViewMode(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: view %q", ErrInvalidPreference, s)
	}
	return v, nil
}

// BadgeVariant is the style of an event's color indicator.
type BadgeVariant string

const (
	BadgeDot     BadgeVariant = "dot"
	BadgeColored BadgeVariant = "colored"
)

func (b BadgeVariant) Valid() bool {
	return b == BadgeDot || b == BadgeColored
}

// AgendaGroupBy selects how the agenda list is grouped.
type AgendaGroupBy string

const (
	GroupByDate  AgendaGroupBy = "date"
	GroupByColor AgendaGroupBy = "color"
)

func (g AgendaGroupBy) Valid() bool {
	return g == GroupByDate || g == GroupByColor
}

// Preferences is the persisted display configuration.
type Preferences struct {
	BadgeVariant    BadgeVariant  `json:"badgeVariant"`
	View            ViewMode      `json:"view"`
	Use24HourFormat bool          `json:"use24HourFormat"`
	AgendaGroupBy   AgendaGroupBy `json:"agendaModeGroupBy"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Preferences {
	return Preferences{
		BadgeVariant:    BadgeColored,
		View:            ViewDay,
		Use24HourFormat: true,
		AgendaGroupBy:   GroupByDate,
	}
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	BadgeVariant    *BadgeVariant  `json:"badgeVariant,omitempty"`
	View            *ViewMode      `json:"view,omitempty"`
	Use24HourFormat *bool          `json:"use24HourFormat,omitempty"`
	AgendaGroupBy   *AgendaGroupBy `json:"agendaModeGroupBy,omitempty"`
}

// Validate rejects values outside the enumerations.
func (p Patch) Validate() error {
	if p.BadgeVariant != nil && !p.BadgeVariant.Valid() {
		return fmt.Errorf("%w: badgeVariant %q", ErrInvalidPreference, *p.BadgeVariant)
	}
	if p.View != nil && !p.View.Valid() {
		return fmt.Errorf("%w: view %q", ErrInvalidPreference, *p.View)
	}
	if p.AgendaGroupBy != nil && !p.AgendaGroupBy.Valid() {
		return fmt.Errorf("%w: agendaModeGroupBy %q", ErrInvalidPreference, *p.AgendaGroupBy)
	}
	return nil
}

// Apply returns p with every valid, non-nil field of patch applied.
func (p Preferences) Apply(patch Patch) Preferences {
	if patch.BadgeVariant != nil && patch.BadgeVariant.Valid() {
		p.BadgeVariant = *patch.BadgeVariant
	}
	if patch.View != nil && patch.View.Valid() {
		p.View = *patch.View
	}
	if patch.Use24HourFormat != nil {
		p.Use24HourFormat = *patch.Use24HourFormat
	}
	if patch.AgendaGroupBy != nil && patch.AgendaGroupBy.Valid() {
		p.AgendaGroupBy = *patch.AgendaGroupBy
	}
	return p
}
