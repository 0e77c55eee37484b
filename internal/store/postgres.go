package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jw6ventures/studycal/internal/calendar"
)

const foreignKeyViolation = "23503"

const visibleOwners = `owner_user_id = $1 OR owner_user_id IN (
        SELECT owner_user_id FROM calendar_shares WHERE viewer_user_id = $1
)`

// userRepo implements UserRepository.
type userRepo struct {
	pool Pool
}

func (r *userRepo) Upsert(ctx context.Context, user calendar.User) error {
	defer observeDB(ctx, "users.upsert")()
	const q = `INSERT INTO users (id, name, avatar_url) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
        name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
        avatar_url = CASE WHEN EXCLUDED.avatar_url <> '' THEN EXCLUDED.avatar_url ELSE users.avatar_url END,
        last_seen_at = NOW()`
	if _, err := r.pool.Exec(ctx, q, user.ID, user.Name, user.AvatarURL); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*calendar.User, error) {
	defer observeDB(ctx, "users.get")()
	const q = `SELECT id, name, avatar_url FROM users WHERE id = $1`
	var u calendar.User
	if err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &u.AvatarURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (r *userRepo) ListVisible(ctx context.Context, viewerID string) ([]calendar.User, error) {
	defer observeDB(ctx, "users.list_visible")()
	const q = `SELECT id, name, avatar_url FROM users
WHERE id = $1 OR id IN (SELECT owner_user_id FROM calendar_shares WHERE viewer_user_id = $1)
ORDER BY name, id`
	rows, err := r.pool.Query(ctx, q, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list users for %s: %w", viewerID, err)
	}
	defer rows.Close()

	var users []calendar.User
	for rows.Next() {
		var u calendar.User
		if err := rows.Scan(&u.ID, &u.Name, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// eventRepo implements EventRepository. Intervals are stored as wall-clock
// TIMESTAMP values and read back into loc.
type eventRepo struct {
	pool Pool
	loc  *time.Location
}

const eventColumns = `id::text, owner_user_id, title, description, start_at, end_at, color`

func (r *eventRepo) ListVisible(ctx context.Context, viewerID string) ([]calendar.Event, error) {
	defer observeDB(ctx, "events.list_visible")()
	q := `SELECT ` + eventColumns + ` FROM events WHERE ` + visibleOwners + ` ORDER BY start_at, end_at, id`
	rows, err := r.pool.Query(ctx, q, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", viewerID, err)
	}
	defer rows.Close()

	var events []calendar.Event
	for rows.Next() {
		ev, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*calendar.Event, error) {
	defer observeDB(ctx, "events.get")()
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	ev, err := r.scan(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (r *eventRepo) Insert(ctx context.Context, ev calendar.Event) error {
	defer observeDB(ctx, "events.insert")()
	const q = `INSERT INTO events (id, owner_user_id, title, description, start_at, end_at, color)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.pool.Exec(ctx, q, ev.ID, ev.OwnerUserID, ev.Title, ev.Description,
		wallClock(ev.Start), wallClock(ev.End), string(ev.Color.OrDefault())); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *eventRepo) Update(ctx context.Context, ev calendar.Event) error {
	defer observeDB(ctx, "events.update")()
	const q = `UPDATE events SET title = $3, description = $4,
        start_at = $5, end_at = $6, color = $7, updated_at = NOW()
WHERE id = $1 AND owner_user_id = $2`
	tag, err := r.pool.Exec(ctx, q, ev.ID, ev.OwnerUserID, ev.Title, ev.Description,
		wallClock(ev.Start), wallClock(ev.End), string(ev.Color.OrDefault()))
	if err != nil {
		return fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id, ownerID string) error {
	defer observeDB(ctx, "events.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1 AND owner_user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) scan(row pgx.Row) (calendar.Event, error) {
	var (
		ev         calendar.Event
		start, end time.Time
		color      string
	)
	if err := row.Scan(&ev.ID, &ev.OwnerUserID, &ev.Title, &ev.Description, &start, &end, &color); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("scan event: %w", err)
	}
	ev.Start = inLocation(start, r.loc)
	ev.End = inLocation(end, r.loc)
	if c := calendar.Color(color); c.Valid() {
		ev.Color = c.OrDefault()
	} else {
		ev.Color = calendar.ColorBlue
	}
	return ev, nil
}

// shareRepo implements ShareRepository.
type shareRepo struct {
	pool Pool
}

func (r *shareRepo) Grant(ctx context.Context, ownerID, viewerID string) error {
	defer observeDB(ctx, "shares.grant")()
	const q = `INSERT INTO calendar_shares (owner_user_id, viewer_user_id) VALUES ($1, $2)
ON CONFLICT (owner_user_id, viewer_user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, ownerID, viewerID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("share calendar with %s: %w", viewerID, ErrNotFound)
		}
		return fmt.Errorf("share calendar %s with %s: %w", ownerID, viewerID, err)
	}
	return nil
}

func (r *shareRepo) Revoke(ctx context.Context, ownerID, viewerID string) error {
	defer observeDB(ctx, "shares.revoke")()
	const q = `DELETE FROM calendar_shares WHERE owner_user_id = $1 AND viewer_user_id = $2`
	tag, err := r.pool.Exec(ctx, q, ownerID, viewerID)
	if err != nil {
		return fmt.Errorf("revoke share %s/%s: %w", ownerID, viewerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shareRepo) ListByOwner(ctx context.Context, ownerID string) ([]Share, error) {
	defer observeDB(ctx, "shares.list")()
	const q = `SELECT owner_user_id, viewer_user_id, created_at FROM calendar_shares
WHERE owner_user_id = $1 ORDER BY viewer_user_id`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list shares for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var shares []Share
	for rows.Next() {
		var s Share
		if err := rows.Scan(&s.OwnerUserID, &s.ViewerUserID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// settingsRepo implements SettingsRepository.
type settingsRepo struct {
	pool Pool
}

func (r *settingsRepo) Get(ctx context.Context, key string) ([]byte, error) {
	defer observeDB(ctx, "settings.get")()
	var value []byte
	if err := r.pool.QueryRow(ctx, `SELECT value::text FROM settings WHERE key = $1`, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *settingsRepo) Put(ctx context.Context, key string, value []byte) error {
	defer observeDB(ctx, "settings.put")()
	const q = `INSERT INTO settings (key, value) VALUES ($1, $2::jsonb)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := r.pool.Exec(ctx, q, key, string(value)); err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// wallClock strips the zone so TIMESTAMP columns keep the local reading.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// inLocation reinterprets a TIMESTAMP value as a wall-clock reading in loc.
func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
