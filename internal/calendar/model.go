package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Color is the display color of an event. The zero value means "unset" and is
// treated as ColorBlue everywhere a concrete color is needed.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
)

// Colors lists every supported color in display order.
var Colors = []Color{ColorBlue, ColorGreen, ColorRed, ColorYellow, ColorPurple, ColorOrange}

// OrDefault returns the color, substituting blue when unset.
func (c Color) OrDefault() Color {
	if c == "" {
		return ColorBlue
	}
	return c
}

// Valid reports whether c is unset or one of the supported colors.
func (c Color) Valid() bool {
	if c == "" {
		return true
	}
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

// ParseColor normalizes user input into a Color.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownColor, s)
	}
	return c.OrDefault(), nil
}

// AllUsers is the user filter value that disables user filtering.
const AllUsers = "all"

// Event is a single time-ranged calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"startDate"`
	End         time.Time `json:"endDate"`
	Color       Color     `json:"color"`
	OwnerUserID string    `json:"ownerUserId"`
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the half-open intervals of e and o share an instant.
func (e Event) Overlaps(o Event) bool {
	return Overlaps(e.Start, e.End, o.Start, o.End)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// User is reference data owned by the backend.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ValidateInterval rejects zero-length and inverted intervals.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: missing start or end", ErrInvalidInterval)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidInterval,
			end.Format(WallClockLayout), start.Format(WallClockLayout))
	}
	return nil
}

// Validate checks the event invariants enforced at the input boundary.
func (e Event) Validate() error {
	if err := ValidateInterval(e.Start, e.End); err != nil {
		return err
	}
	if !e.Color.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownColor, e.Color)
	}
	return nil
}

// WallClockLayout is the canonical minute-precision input format.
const WallClockLayout = "2006-01-02T15:04"

var wallClockLayouts = []string{
	WallClockLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseWallClock parses a local wall-clock timestamp in loc. RFC 3339 input is
// accepted as well; its offset is dropped and the wall-clock reading kept.
func ParseWallClock(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrInvalidInterval, s)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
