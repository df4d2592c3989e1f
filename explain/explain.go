package explain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects the EXPLAIN options used for a generic plan.
type Mode int

const (
	Generic        Mode = iota // EXPLAIN (GENERIC_PLAN)
	GenericVerbose             // EXPLAIN (GENERIC_PLAN, VERBOSE)
)

func (m Mode) String() string {
	switch m {
	case Generic:
		return "EXPLAIN (GENERIC_PLAN)"
	case GenericVerbose:
		return "EXPLAIN (GENERIC_PLAN, VERBOSE)"
	}
	return "EXPLAIN (GENERIC_PLAN)"
}

// Statement returns the EXPLAIN statement for a normalized query.
func (m Mode) Statement(normalized string) string {
	q := strings.TrimSpace(normalized)
	q = strings.TrimSuffix(q, ";")
	return m.String() + " " + q
}

// Result holds the output of an EXPLAIN query.
type Result struct {
	Plan     string
	Duration time.Duration
}

// Client plans normalized queries on a PostgreSQL 16+ server. Generic
// plans accept $n placeholders without values, so the output of the
// normalizer can be explained as is.
type Client struct {
	db *sql.DB
}

// NewClient creates a new Client from an existing *sql.DB.
func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

// Run executes EXPLAIN for the given normalized query.
func (c *Client) Run(ctx context.Context, mode Mode, normalized string) (*Result, error) {
	if strings.TrimSpace(normalized) == "" {
		return nil, errors.New("explain: empty query")
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, mode.Statement(normalized))
	if err != nil {
		return nil, fmt.Errorf("explain: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []string
	for rows.Next() {
		var line sql.NullString
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("explain: scan: %w", err)
		}
		lines = append(lines, line.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: rows: %w", err)
	}

	return &Result{
		Plan:     strings.Join(lines, "\n"),
		Duration: time.Since(start),
	}, nil
}

// Close closes the underlying database connection.
func (c *Client) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("explain: close: %w", err)
	}
	return nil
}
