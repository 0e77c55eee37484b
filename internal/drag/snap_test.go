package drag

import (
	"testing"
	"time"
)

func TestSnapMinute(t *testing.T) {
	tests := []struct {
		minute, inc, want int
	}{
		{minute: 607, inc: 15, want: 600},
		{minute: 608, inc: 15, want: 615},
		{minute: 614, inc: 15, want: 615},
		{minute: 644, inc: 30, want: 630},
		{minute: 645, inc: 30, want: 660},
		{minute: -5, inc: 15, want: 0},
		{minute: 1439, inc: 15, want: 1425},
		{minute: 1439, inc: 30, want: 1410},
		{minute: 100, inc: 0, want: 105},
	}
	for _, tt := range tests {
		if got := SnapMinute(tt.minute, tt.inc); got != tt.want {
			t.Errorf("SnapMinute(%d, %d) = %d, want %d", tt.minute, tt.inc, got, tt.want)
		}
	}
}

func TestIncrementFor(t *testing.T) {
	g := Grid{}
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		start    time.Time
		duration time.Duration
		want     int
	}{
		{"half-hour aligned", day.Add(9 * time.Hour), time.Hour, 30},
		{"half-hour start, 45 minute event", day.Add(9 * time.Hour), 45 * time.Minute, 15},
		{"quarter start, hour event", day.Add(9*time.Hour + 15*time.Minute), time.Hour, 15},
		{"thirty minute event on the half hour", day.Add(9*time.Hour + 30*time.Minute), 30 * time.Minute, 30},
		{"odd seconds", day.Add(9*time.Hour + 5*time.Second), time.Hour, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.IncrementFor(tt.start, tt.duration); got != tt.want {
				t.Errorf("IncrementFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGridDefaults(t *testing.T) {
	g := Grid{SnapMinutes: 10, CoarseMinutes: 25}.withDefaults()
	if g.SnapMinutes != 10 || g.CoarseMinutes != 20 {
		t.Errorf("withDefaults() = %+v, want 10/20", g)
	}
	g = Grid{SnapMinutes: -1}.withDefaults()
	if g.SnapMinutes != DefaultSnapMinutes || g.CoarseMinutes != DefaultCoarseMinutes {
		t.Errorf("withDefaults() = %+v", g)
	}
}
