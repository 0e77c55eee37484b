package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestValidateInterval(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		end     time.Time
		wantErr bool
	}{
		{name: "valid", end: start.Add(time.Minute)},
		{name: "zero duration", end: start, wantErr: true},
		{name: "inverted", end: start.Add(-time.Hour), wantErr: true},
		{name: "missing end", end: time.Time{}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInterval(start, tc.end)
			if tc.wantErr && !errors.Is(err, ErrInvalidInterval) {
				t.Errorf("expected ErrInvalidInterval, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseWallClock(t *testing.T) {
	loc := time.FixedZone("test", 3*3600)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-15T10:00", want: time.Date(2024, 1, 15, 10, 0, 0, 0, loc)},
		{in: "2024-01-15T10:00:30", want: time.Date(2024, 1, 15, 10, 0, 30, 0, loc)},
		{in: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, loc)},
		{in: "2024-01-15T10:00:00Z", want: time.Date(2024, 1, 15, 10, 0, 0, 0, loc)},
		{in: "next tuesday", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseWallClock(tc.in, loc)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidInterval) {
				t.Errorf("ParseWallClock(%q) expected ErrInvalidInterval, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWallClock(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseWallClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	if c, err := ParseColor(" Purple "); err != nil || c != ColorPurple {
		t.Errorf("ParseColor(Purple) = %q, %v", c, err)
	}
	if c, err := ParseColor(""); err != nil || c != ColorBlue {
		t.Errorf("ParseColor(\"\") = %q, %v, want blue", c, err)
	}
	if _, err := ParseColor("magenta"); !errors.Is(err, ErrUnknownColor) {
		t.Errorf("expected ErrUnknownColor, got %v", err)
	}
}

func TestEventOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 1, 15, h, m, 0, 0, time.UTC) }
	a := Event{Start: at(9, 0), End: at(10, 0)}
	b := Event{Start: at(10, 0), End: at(11, 0)}
	c := Event{Start: at(9, 59), End: at(10, 30)}

	if a.Overlaps(b) {
		t.Error("touching intervals must not overlap")
	}
	if !a.Overlaps(c) || !c.Overlaps(a) {
		t.Error("expected a and c to overlap")
	}
}
