// Package journal persists dispatch records to SQLite.
//
// The journal observes the dispatch engine synchronously but never blocks
// it: records are queued on a bounded channel and written by Run. When the
// queue is full the record is dropped and counted.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/log"
)

// Entry is a stored dispatch record.
type Entry struct {
	ID int64 `json:"id"`
	hooks.DispatchRecord
}

// Journal is a hooks.DispatchObserver backed by a SQLite table.
type Journal struct {
	db      *sql.DB
	queue   chan hooks.DispatchRecord
	dropped atomic.Uint64
	logger  *slog.Logger
}

// New creates a journal with room for buffer queued records.
func New(db *sql.DB, buffer int) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal database is nil")
	}
	if buffer < 1 {
		return nil, fmt.Errorf("journal buffer must be positive, got %d", buffer)
	}
	return &Journal{
		db:     db,
		queue:  make(chan hooks.DispatchRecord, buffer),
		logger: log.WithComponent("journal"),
	}, nil
}

// ObserveDispatch implements hooks.DispatchObserver.
func (j *Journal) ObserveDispatch(rec hooks.DispatchRecord) {
	select {
	case j.queue <- rec:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("journal queue full, dropping records")
		}
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Run writes queued records until ctx is cancelled, then flushes what is
// already queued.
func (j *Journal) Run(ctx context.Context) error {
	// Writes outlive cancellation so a record taken off the queue is kept.
	wctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return j.flush()
		case rec := <-j.queue:
			if err := j.Insert(wctx, rec); err != nil {
				j.logger.Error("journal write failed", "hook", rec.Hook, "handle_id", rec.HandleID, "error", err)
			}
		}
	}
}

func (j *Journal) flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-j.queue:
			if err := j.Insert(ctx, rec); err != nil {
				return fmt.Errorf("flush journal: %w", err)
			}
		default:
			return nil
		}
	}
}

// Insert writes one record directly.
func (j *Journal) Insert(ctx context.Context, rec hooks.DispatchRecord) error {
	callouts := rec.Callouts
	if callouts == nil {
		callouts = []hooks.CalloutRecord{}
	}
	raw, err := json.Marshal(callouts)
	if err != nil {
		return fmt.Errorf("encode callouts: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
INSERT INTO dispatch_journal(hook, hook_index, handle_id, started_at, duration_ns, status, callouts)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, rec.Hook, rec.HookIndex, rec.HandleID, rec.Started.UTC().Format(time.RFC3339Nano), int64(rec.Duration), rec.Status, string(raw))
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty hook matches
// every hook.
func (j *Journal) Recent(ctx context.Context, hook string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, hook, hook_index, handle_id, started_at, duration_ns, status, callouts
FROM dispatch_journal
WHERE ? = '' OR hook = ?
ORDER BY id DESC
LIMIT ?;
`, hook, hook, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			started  string
			duration int64
			callouts string
		)
		if err := rows.Scan(&e.ID, &e.Hook, &e.HookIndex, &e.HandleID, &started, &duration, &e.Status, &callouts); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		if e.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		e.Duration = time.Duration(duration)
		if err := json.Unmarshal([]byte(callouts), &e.Callouts); err != nil {
			return nil, fmt.Errorf("decode callouts for id=%d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}
