// Package syncx is an append-only event log for offline-first deployments.
// Each state change on an attempt appends one row; a future reconciler can
// replay rows by offset to push classroom-server state to a central site.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types recorded by the attempt engine.
const (
	EventAttemptStarted   = "AttemptStarted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventAttemptTimedOut  = "AttemptTimedOut"
	EventAttemptAbandoned = "AttemptAbandoned"
)

type Event struct {
	Offset    int64           `json:"offset"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// Execer is satisfied by *sql.DB and *sql.Tx so events can join the
// transaction that produced them.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Recorder struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewRecorder(db *sql.DB, siteID string, now func() time.Time) *Recorder {
	if siteID == "" {
		siteID = "local"
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{db: db, siteID: siteID, now: now}
}

// Record appends one event. key is the natural key of the changed entity
// (the attempt id for attempt events).
func (r *Recorder) Record(ctx context.Context, q Execer, typ, key string, payload any) error {
	if q == nil {
		q = r.db
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(data), r.now().Unix())
	return err
}

// Since returns up to limit events with offset strictly greater than after,
// in offset order.
func (r *Recorder) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at
		   FROM event_log WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`,
		after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
