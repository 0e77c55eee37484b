package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/auth"
	"github.com/jw6ventures/studycal/internal/calendar"
	"github.com/jw6ventures/studycal/internal/drag"
	"github.com/jw6ventures/studycal/internal/eventstore"
	"github.com/jw6ventures/studycal/internal/prefs"
	"github.com/jw6ventures/studycal/internal/session"
	"github.com/jw6ventures/studycal/internal/store"
	"github.com/jw6ventures/studycal/internal/view"
)

var monday = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu      sync.Mutex
	events  []calendar.Event
	addErr  error
	updErr  error
	updates []calendar.Event
	removed []string
}

func (f *fakeBackend) Load(ctx context.Context, viewerID string) ([]calendar.Event, []calendar.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]calendar.Event(nil), f.events...), []calendar.User{{ID: viewerID, Name: "Viewer"}}, nil
}

func (f *fakeBackend) AddEvent(ctx context.Context, ev eventstore.NewEvent) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	return "new-1", nil
}

func (f *fakeBackend) UpdateEvent(ctx context.Context, ev calendar.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, ev)
	return nil
}

func (f *fakeBackend) RemoveEvent(ctx context.Context, ev calendar.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ev.ID)
	return nil
}

type fakeShares struct {
	mu     sync.Mutex
	grants map[string]bool
}

func (f *fakeShares) Grant(ctx context.Context, ownerID, viewerID string) error {
	if viewerID == "ghost" {
		return fmt.Errorf("share calendar with %s: %w", viewerID, store.ErrNotFound)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[ownerID+"/"+viewerID] = true
	return nil
}

func (f *fakeShares) Revoke(ctx context.Context, ownerID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.grants[ownerID+"/"+viewerID] {
		return store.ErrNotFound
	}
	delete(f.grants, ownerID+"/"+viewerID)
	return nil
}

func (f *fakeShares) ListByOwner(ctx context.Context, ownerID string) ([]store.Share, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Share
	for k := range f.grants {
		owner, viewer, _ := strings.Cut(k, "/")
		if owner == ownerID {
			out = append(out, store.Share{OwnerUserID: owner, ViewerUserID: viewer})
		}
	}
	return out, nil
}

type testEnv struct {
	backend  *fakeBackend
	shares   *fakeShares
	kv       *prefs.MemoryKV
	sessions *session.Manager
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	backend := &fakeBackend{events: []calendar.Event{
		{ID: "a", Title: "Standup", Start: monday.Add(time.Hour), End: monday.Add(2 * time.Hour), Color: calendar.ColorRed, OwnerUserID: "u1"},
		{ID: "b", Title: "Exam", Start: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Color: calendar.ColorBlue, OwnerUserID: "u2"},
	}}
	kv := prefs.NewMemoryKV()
	sessions := session.NewManager(session.Config{
		View: view.Config{WeekStart: time.Sunday, Location: time.UTC, Now: func() time.Time { return monday }},
	}, backend, kv, log)
	shares := &fakeShares{grants: map[string]bool{}}

	h := NewHandler(sessions, shares, log)
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	return &testEnv{backend: backend, shares: shares, kv: kv, sessions: sessions, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, "u1", method, path, body)
}

func (e *testEnv) doAs(t *testing.T, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), calendar.User{ID: userID}, auth.MethodBearer))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.doAs(t, "", http.MethodGet, "/api/calendar", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCalendarSnapshot(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/calendar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	snap := decodeBody[session.Snapshot](t, rec)
	if snap.State.View != prefs.ViewDay {
		t.Errorf("view = %q, want day", snap.State.View)
	}
	if len(snap.Model.Days) != 1 || len(snap.Model.Days[0].Blocks) != 1 {
		t.Fatalf("days = %+v, want one day with one event", snap.Model.Days)
	}
	if snap.Model.Days[0].Blocks[0].Event.ID != "a" {
		t.Errorf("laid out event = %q, want a", snap.Model.Days[0].Blocks[0].Event.ID)
	}
}

func TestEventLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/events", `{"title":"Lab","startDate":"2024-01-15T11:00","endDate":"2024-01-15T12:30","color":"green"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[calendar.Event](t, rec)
	if created.ID != "new-1" || created.Color != calendar.ColorGreen || created.OwnerUserID != "u1" {
		t.Errorf("created = %+v", created)
	}
	if !created.End.Equal(time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("created end = %s", created.End)
	}

	rec = env.do(t, http.MethodGet, "/api/events", "")
	if list := decodeBody[[]calendar.Event](t, rec); len(list) != 3 {
		t.Errorf("list length = %d, want 3", len(list))
	}

	rec = env.do(t, http.MethodPut, "/api/events/a", `{"title":"Standup (moved)","startDate":"2024-01-15T10:00","endDate":"2024-01-15T11:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[calendar.Event](t, rec)
	if updated.Color != calendar.ColorRed || updated.OwnerUserID != "u1" || updated.Title != "Standup (moved)" {
		t.Errorf("updated = %+v, want color and owner kept", updated)
	}
	if len(env.backend.updates) != 1 {
		t.Errorf("backend updates = %d, want 1", len(env.backend.updates))
	}

	if rec := env.do(t, http.MethodDelete, "/api/events/a", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/events/a", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestEventValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"inverted interval", http.MethodPost, "/api/events", `{"title":"x","startDate":"2024-01-15T11:00","endDate":"2024-01-15T10:00"}`, http.StatusBadRequest},
		{"zero length", http.MethodPost, "/api/events", `{"title":"x","startDate":"2024-01-15T11:00","endDate":"2024-01-15T11:00"}`, http.StatusBadRequest},
		{"unparseable date", http.MethodPost, "/api/events", `{"title":"x","startDate":"soon","endDate":"2024-01-15T11:00"}`, http.StatusBadRequest},
		{"unknown color", http.MethodPost, "/api/events", `{"title":"x","startDate":"2024-01-15T10:00","endDate":"2024-01-15T11:00","color":"pink"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/events", `{"name":"x"}`, http.StatusBadRequest},
		{"update unknown id", http.MethodPut, "/api/events/nope", `{"title":"x","startDate":"2024-01-15T10:00","endDate":"2024-01-15T11:00"}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestOtherUsersEventsAreReadOnly(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create for another owner", http.MethodPost, "/api/events", `{"title":"x","startDate":"2024-01-15T11:00","endDate":"2024-01-15T12:00","ownerUserId":"u2"}`},
		{"update shared event", http.MethodPut, "/api/events/b", `{"title":"Mine now","startDate":"2024-03-01T09:00","endDate":"2024-03-01T11:00"}`},
		{"take over shared event", http.MethodPut, "/api/events/b", `{"title":"Exam","startDate":"2024-03-01T09:00","endDate":"2024-03-01T11:00","ownerUserId":"u1"}`},
		{"give away own event", http.MethodPut, "/api/events/a", `{"title":"Standup","startDate":"2024-01-15T09:00","endDate":"2024-01-15T10:00","ownerUserId":"u2"}`},
		{"delete shared event", http.MethodDelete, "/api/events/b", ""},
		{"drag shared event", http.MethodPost, "/api/drag/start", `{"eventId":"b"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, tc.method, tc.path, tc.body)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
			}
			if len(env.backend.updates) != 0 || len(env.backend.removed) != 0 {
				t.Errorf("backend touched: updates=%v removed=%v", env.backend.updates, env.backend.removed)
			}
			list := decodeBody[[]calendar.Event](t, env.do(t, http.MethodGet, "/api/events", ""))
			if len(list) != 2 {
				t.Errorf("events = %d, want 2", len(list))
			}
			for _, ev := range list {
				if ev.ID == "b" && (ev.OwnerUserID != "u2" || ev.Title != "Exam") {
					t.Errorf("shared event changed: %+v", ev)
				}
			}
			if state := decodeBody[dragStateResponse](t, env.do(t, http.MethodGet, "/api/drag", "")); state.State != drag.Idle {
				t.Errorf("drag state = %v, want idle", state.State)
			}
		})
	}
}

func TestBackendRejectionIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.backend.addErr = errors.New("connection reset")

	rec := env.do(t, http.MethodPost, "/api/events", `{"title":"Lab","startDate":"2024-01-15T11:00","endDate":"2024-01-15T12:00"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("backend error leaked to client: %s", rec.Body.String())
	}
	list := decodeBody[[]calendar.Event](t, env.do(t, http.MethodGet, "/api/events", ""))
	if len(list) != 2 {
		t.Errorf("events after failed add = %d, want 2", len(list))
	}
}

func TestViewNavigation(t *testing.T) {
	env := newTestEnv(t)

	state := decodeBody[view.State](t, env.do(t, http.MethodPut, "/api/calendar/view", `{"view":"week"}`))
	if state.View != prefs.ViewWeek {
		t.Fatalf("view = %q, want week", state.View)
	}
	if rec := env.do(t, http.MethodPut, "/api/calendar/view", `{"view":"year"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid view status = %d, want 400", rec.Code)
	}

	state = decodeBody[view.State](t, env.do(t, http.MethodPut, "/api/calendar/date", `{"date":"2024-02-10"}`))
	if want := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC); !state.SelectedDate.Equal(want) {
		t.Errorf("selected = %s, want %s", state.SelectedDate, want)
	}
	state = decodeBody[view.State](t, env.do(t, http.MethodPost, "/api/calendar/navigate", `{"step":1}`))
	if want := time.Date(2024, 2, 17, 0, 0, 0, 0, time.UTC); !state.SelectedDate.Equal(want) {
		t.Errorf("after next week = %s, want %s", state.SelectedDate, want)
	}
	state = decodeBody[view.State](t, env.do(t, http.MethodPost, "/api/calendar/navigate", `{"today":true}`))
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !state.SelectedDate.Equal(want) {
		t.Errorf("today = %s, want %s", state.SelectedDate, want)
	}

	raw, err := env.kv.Get(context.Background(), prefs.ScopedKey("u1"))
	if err != nil || !strings.Contains(string(raw), `"week"`) {
		t.Errorf("stored preferences = %s, %v; want week persisted", raw, err)
	}
}

func TestPreferencesAndFilters(t *testing.T) {
	env := newTestEnv(t)

	state := decodeBody[view.State](t, env.do(t, http.MethodPatch, "/api/calendar/preferences", `{"badgeVariant":"dot","use24HourFormat":false}`))
	if state.BadgeVariant != prefs.BadgeDot || state.Use24HourFormat {
		t.Errorf("state = %+v", state)
	}
	if rec := env.do(t, http.MethodPatch, "/api/calendar/preferences", `{"agendaModeGroupBy":"week"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid preference status = %d, want 400", rec.Code)
	}

	state = decodeBody[view.State](t, env.do(t, http.MethodPost, "/api/calendar/filters/colors/RED", ""))
	if len(state.SelectedColors) != 1 || state.SelectedColors[0] != calendar.ColorRed {
		t.Errorf("colors = %v, want [red]", state.SelectedColors)
	}
	if rec := env.do(t, http.MethodPost, "/api/calendar/filters/colors/pink", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown color status = %d, want 400", rec.Code)
	}
	if list := decodeBody[[]calendar.Event](t, env.do(t, http.MethodGet, "/api/events", "")); len(list) != 1 || list[0].ID != "a" {
		t.Errorf("red events = %+v", list)
	}

	state = decodeBody[view.State](t, env.do(t, http.MethodPut, "/api/calendar/filters/user", `{"userId":"u2"}`))
	if state.SelectedUserID != "u2" {
		t.Errorf("user = %q", state.SelectedUserID)
	}
	if list := decodeBody[[]calendar.Event](t, env.do(t, http.MethodGet, "/api/events", "")); len(list) != 0 {
		t.Errorf("red events of u2 = %+v, want none", list)
	}

	state = decodeBody[view.State](t, env.do(t, http.MethodDelete, "/api/calendar/filters", ""))
	if len(state.SelectedColors) != 0 || state.SelectedUserID != calendar.AllUsers {
		t.Errorf("after clear = %+v", state)
	}
}

func TestDragRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/drag/drop", `{"target":null}`); rec.Code != http.StatusConflict {
		t.Errorf("drop without drag status = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/drag/start", `{"eventId":"nope"}`); rec.Code != http.StatusNotFound {
		t.Errorf("start unknown status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/drag/start", `{"eventId":"a"}`); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/drag/start", `{"eventId":"a"}`); rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}

	target := `{"day":"2024-01-15","minute":787,"hasTime":true}`
	proposed := decodeBody[drag.Interval](t, env.do(t, http.MethodPost, "/api/drag/hover", target))
	wantStart := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)
	if !proposed.Start.Equal(wantStart) || !proposed.End.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("proposed = %s..%s", proposed.Start, proposed.End)
	}
	if rec := env.do(t, http.MethodPost, "/api/drag/hover", `{"day":"2024-01-20","minute":60,"hasTime":true}`); rec.Code != http.StatusBadRequest {
		t.Errorf("hover outside view status = %d, want 400", rec.Code)
	}

	state := decodeBody[dragStateResponse](t, env.do(t, http.MethodGet, "/api/drag", ""))
	if state.State != drag.Dragging || state.Session == nil || state.Session.Event.ID != "a" {
		t.Errorf("drag state = %+v", state)
	}

	rec := env.do(t, http.MethodPost, "/api/drag/drop", `{"target":`+target+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("drop status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[drag.Result](t, rec)
	if !res.Committed || !res.Event.Start.Equal(wantStart) || res.Event.Duration() != time.Hour {
		t.Errorf("drop result = %+v", res)
	}
	if rec := env.do(t, http.MethodPost, "/api/drag/cancel", ""); rec.Code != http.StatusConflict {
		t.Errorf("cancel after drop status = %d, want 409", rec.Code)
	}
}

func TestDropWithoutTargetCancels(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/drag/start", `{"eventId":"a"}`)

	res := decodeBody[drag.Result](t, env.do(t, http.MethodPost, "/api/drag/drop", `{"target":null}`))
	if res.Committed || !res.Event.Start.Equal(monday.Add(time.Hour)) {
		t.Errorf("cancelled drop = %+v", res)
	}
	if len(env.backend.updates) != 0 {
		t.Errorf("backend updates = %d, want none", len(env.backend.updates))
	}
}

func TestFailedDropReverts(t *testing.T) {
	env := newTestEnv(t)
	env.backend.updErr = errors.New("write conflict")
	env.do(t, http.MethodPost, "/api/drag/start", `{"eventId":"a"}`)

	rec := env.do(t, http.MethodPost, "/api/drag/drop", `{"target":{"day":"2024-01-15","minute":900,"hasTime":true}}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	list := decodeBody[[]calendar.Event](t, env.do(t, http.MethodGet, "/api/events", ""))
	for _, ev := range list {
		if ev.ID == "a" && !ev.Start.Equal(monday.Add(time.Hour)) {
			t.Errorf("event moved after failed drop: %s", ev.Start)
		}
	}
	if rec := env.do(t, http.MethodPost, "/api/drag/start", `{"eventId":"a"}`); rec.Code != http.StatusOK {
		t.Errorf("restart after failure status = %d", rec.Code)
	}
}

func TestExportAgenda(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/calendar/agenda.ics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Standup", "UID:a", "COLOR:red"} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Exam") {
		t.Error("export contains an event outside the visible range")
	}
}

func TestShares(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.sessions.Get(context.Background(), "u2"); err != nil {
		t.Fatalf("open viewer session: %v", err)
	}

	if rec := env.do(t, http.MethodPut, "/api/shares/u1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("self share status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/api/shares/ghost", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown viewer status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/api/shares/u2", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("grant status = %d", rec.Code)
	}
	if env.sessions.Len() != 0 {
		t.Errorf("open sessions = %d, want viewer session dropped", env.sessions.Len())
	}

	list := decodeBody[[]store.Share](t, env.do(t, http.MethodGet, "/api/shares", ""))
	if len(list) != 1 || list[0].ViewerUserID != "u2" {
		t.Errorf("shares = %+v", list)
	}

	if rec := env.do(t, http.MethodDelete, "/api/shares/u2", ""); rec.Code != http.StatusNoContent {
		t.Errorf("revoke status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/shares/u2", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second revoke status = %d, want 404", rec.Code)
	}
}
