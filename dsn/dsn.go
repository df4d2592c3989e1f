package dsn

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// DetectDriver returns the database/sql driver name for raw.
// PostgreSQL URIs and key=value strings use pgx; file: URIs, :memory: and
// paths ending in .db, .sqlite or .sqlite3 use sqlite.
func DetectDriver(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("dsn: empty")
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "pgx", nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite", nil
	case isKeyValue(s):
		return "pgx", nil
	}
	return "", fmt.Errorf("dsn: cannot detect driver for %q", redact(s))
}

// Open opens a *sql.DB for raw using the detected driver.
func Open(raw string) (*sql.DB, error) {
	driver, err := DetectDriver(raw)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("dsn: open %s: %w", driver, err)
	}
	return db, nil
}

// isKeyValue reports whether s looks like "host=localhost dbname=db".
func isKeyValue(s string) bool {
	for _, field := range strings.Fields(s) {
		key, _, ok := strings.Cut(field, "=")
		if !ok {
			return false
		}
		switch key {
		case "host", "hostaddr", "port", "dbname", "user", "password", "sslmode", "application_name", "connect_timeout":
		default:
			return false
		}
	}
	return true
}

// redact hides everything after the scheme so errors never leak passwords.
func redact(s string) string {
	if scheme, _, ok := strings.Cut(s, "://"); ok {
		return scheme + "://..."
	}
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
