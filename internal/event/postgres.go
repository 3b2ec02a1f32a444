package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/eventchat/internal/tracing"
)

// ChangeChannel is the PostgreSQL NOTIFY channel raised by the events table
// trigger (see migrations/000001_create_events.up.sql).
const ChangeChannel = "event_changes"

// Listener reconnect bounds and the idle ping interval.
const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

const eventColumns = `id, title, description, tags, location_description, lat, lng,
	members, creator, is_public, start_date, end_date`

// PostgresStore is a Store backed by the events table.
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore wraps an open database. dsn is used to open the dedicated
// LISTEN connection for Subscribe.
func NewPostgresStore(db *sql.DB, dsn string) *PostgresStore {
	return &PostgresStore{db: db, dsn: dsn}
}

// ListDiscoverable implements Store.
func (s *PostgresStore) ListDiscoverable(ctx context.Context, now time.Time) (events []Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events
		WHERE is_public AND start_date > $1
		ORDER BY start_date, id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query discoverable events: %w", err)
	}
	return scanEvents(rows)
}

// ListByMember implements Store.
func (s *PostgresStore) ListByMember(ctx context.Context, userID string) (events []Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events
		WHERE $1 = ANY(members)
		ORDER BY start_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for member: %w", err)
	}
	return scanEvents(rows)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (e *Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err = scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return e, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, e *Event) (err error) {
	if err := e.Validate(); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	var endDate sql.NullTime
	if !e.EndDate.IsZero() {
		endDate = sql.NullTime{Time: e.EndDate, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			location_description = EXCLUDED.location_description,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			members = EXCLUDED.members,
			creator = EXCLUDED.creator,
			is_public = EXCLUDED.is_public,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			updated_at = NOW()`,
		e.ID, e.Title, e.Description, pq.Array(e.Tags), e.Location.Description,
		e.Location.Coordinate.Lat, e.Location.Coordinate.Lng, pq.Array(e.Members),
		e.Creator, e.IsPublic, e.StartDate, endDate)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", e.ID, err)
	}
	return nil
}

// Subscribe implements Store using LISTEN on ChangeChannel. Listener failures
// are logged; the listener reconnects on its own.
func (s *PostgresStore) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("event change listener error", "event", ev, "error", err)
			}
		})
	if err := listener.Listen(ChangeChannel); err != nil {
		slog.Error("failed to listen for event changes", "channel", ChangeChannel, "error", err)
	}

	go func() {
		defer close(ch)
		defer listener.Close()

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Notify:
				// A nil notification means the connection was re-established
				// and changes may have been missed, so it counts as a change.
				notify(ch)
			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					slog.Warn("event change listener ping failed", "error", err)
				}
			}
		}
	}()
	return ch
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e       Event
		endDate sql.NullTime
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, pq.Array(&e.Tags),
		&e.Location.Description, &e.Location.Coordinate.Lat, &e.Location.Coordinate.Lng,
		pq.Array(&e.Members), &e.Creator, &e.IsPublic, &e.StartDate, &endDate)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		e.EndDate = endDate.Time
	}
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}
