package pgstat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// activityQuery lists the statements currently running on the server.
// It sticks to columns and operators that also exist in SQLite so the
// sampler can be exercised without a server.
const activityQuery = `SELECT pid, datname, query FROM pg_stat_activity WHERE state = 'active' AND query <> ''`

// Activity is one running statement.
type Activity struct {
	PID      int64
	Database string
	Query    string
}

// Snapshot is the result of one Sample call.
type Snapshot struct {
	ID         string
	Taken      time.Time
	Activities []Activity
}

// Sampler reads pg_stat_activity.
type Sampler struct {
	db  *sql.DB
	now func() time.Time
}

// NewSampler creates a Sampler over db.
func NewSampler(db *sql.DB) *Sampler {
	return &Sampler{db: db, now: time.Now}
}

// Sample returns the statements active right now, excluding its own.
func (s *Sampler) Sample(ctx context.Context) (*Snapshot, error) {
	id := uuid.New().String()
	taken := s.now()

	rows, err := s.db.QueryContext(ctx, activityQuery)
	if err != nil {
		return nil, fmt.Errorf("pgstat: sample %s: query: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var acts []Activity
	for rows.Next() {
		var (
			a       Activity
			datname sql.NullString
		)
		if err := rows.Scan(&a.PID, &datname, &a.Query); err != nil {
			return nil, fmt.Errorf("pgstat: sample %s: scan: %w", id, err)
		}
		if a.Query == activityQuery {
			continue
		}
		a.Database = datname.String
		acts = append(acts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstat: sample %s: rows: %w", id, err)
	}

	return &Snapshot{
		ID:         id,
		Taken:      taken,
		Activities: acts,
	}, nil
}

// Run samples every interval until ctx is done, passing each snapshot to
// fn. A failed sample is passed to onErr and does not stop the loop.
func (s *Sampler) Run(ctx context.Context, interval time.Duration, fn func(*Snapshot), onErr func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pgstat: run: %w", ctx.Err())
		case <-ticker.C:
			snap, err := s.Sample(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("pgstat: run: %w", ctx.Err())
				}
				if onErr != nil {
					onErr(err)
				}
				continue
			}
			fn(snap)
		}
	}
}
