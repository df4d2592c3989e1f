package query

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Hash returns the XXH3 hash of an already normalized query.
func Hash(normalized string) uint64 {
	return pg_query.HashXXH3_64([]byte(normalized), 0)
}

// Fingerprint normalizes sql and returns the hash identifying its group
// together with the normalized text. A trailing semicolon is dropped first
// so that log formats with and without one agree.
func (n *Normalizer) Fingerprint(sql string) (uint64, string, error) {
	normalized, err := n.Normalize(TrimStatement(sql))
	if err != nil {
		return 0, "", err
	}
	return Hash(normalized), normalized, nil
}

// TrimStatement drops surrounding whitespace and one trailing semicolon,
// the form Fingerprint normalizes.
func TrimStatement(sql string) string {
	sql = strings.TrimSpace(sql)
	return strings.TrimSuffix(sql, ";")
}

// Fingerprint fingerprints sql with the default engine.
func Fingerprint(sql string, fallback Fallback) (uint64, string, error) {
	return NewNormalizer(nil, fallback).Fingerprint(sql)
}
