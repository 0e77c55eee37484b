package calendar

// Filters is the active color/user selection of a calendar session. The zero
// value has no filters and behaves like NewFilters().
type Filters struct {
	colors map[Color]struct{}
	userID string
}

// NewFilters returns a filter set that keeps every event.
func NewFilters() Filters {
	return Filters{userID: AllUsers}
}

// UserID returns the selected user id, or AllUsers.
func (f Filters) UserID() string {
	if f.userID == "" {
		return AllUsers
	}
	return f.userID
}

// Colors returns the selected colors in display order.
func (f Filters) Colors() []Color {
	out := make([]Color, 0, len(f.colors))
	for _, c := range Colors {
		if _, ok := f.colors[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// HasColor reports whether c is currently selected.
func (f Filters) HasColor(c Color) bool {
	_, ok := f.colors[c.OrDefault()]
	return ok
}

// ToggleColor removes c when selected and adds it otherwise.
func (f *Filters) ToggleColor(c Color) {
	c = c.OrDefault()
	next := make(map[Color]struct{}, len(f.colors)+1)
	for k := range f.colors {
		next[k] = struct{}{}
	}
	if _, ok := next[c]; ok {
		delete(next, c)
	} else {
		next[c] = struct{}{}
	}
	f.colors = next
}

// SelectUser restricts the visible events to one owner; AllUsers or "" clears it.
func (f *Filters) SelectUser(id string) {
	if id == "" {
		id = AllUsers
	}
	f.userID = id
}

// Clear resets both the color set and the user filter.
func (f *Filters) Clear() {
	f.colors = nil
	f.userID = AllUsers
}

// Equal reports whether two filter sets select the same events.
func (f Filters) Equal(o Filters) bool {
	if f.UserID() != o.UserID() || len(f.colors) != len(o.colors) {
		return false
	}
	for c := range f.colors {
		if _, ok := o.colors[c]; !ok {
			return false
		}
	}
	return true
}

// Match reports whether a single event passes the filters.
func (f Filters) Match(e Event) bool {
	if len(f.colors) > 0 {
		if _, ok := f.colors[e.Color.OrDefault()]; !ok {
			return false
		}
	}
	if uid := f.UserID(); uid != AllUsers && e.OwnerUserID != uid {
		return false
	}
	return true
}

// VisibleEvents returns the events that pass f, preserving input order. The
// input slice is not modified.
func VisibleEvents(all []Event, f Filters) []Event {
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
