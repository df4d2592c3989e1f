package highlight_test

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/fabriziomello/pg-normalize-query/highlight"
)

func TestSQL(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"SELECT * FROM users WHERE id = $1",
		"UPDATE foo SET f2=$1 WHERE id=$2 AND f1 > now() - interval $3",
	}
	for _, in := range tests {
		got := highlight.SQL(in)
		if stripped := ansi.Strip(got); stripped != in {
			t.Errorf("SQL(%q) changed text: %q", in, stripped)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	in := "SELECT $1, a FROM t WHERE b IN ($2, $10)"
	got := highlight.Placeholders(in)
	if stripped := ansi.Strip(got); stripped != in {
		t.Fatalf("Placeholders changed text: %q", stripped)
	}
	for _, p := range []string{"$1", "$2", "$10"} {
		if !strings.Contains(got, p) {
			t.Fatalf("missing %s in %q", p, got)
		}
	}
}

func TestHeader(t *testing.T) {
	t.Parallel()

	if got := highlight.Header(""); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := ansi.Strip(highlight.Header("Top queries")); got != "Top queries" {
		t.Fatalf("got %q", got)
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	plan := "Index Scan using users_pkey on users  (cost=0.15..8.17 rows=1 width=32)\n" +
		"  Index Cond: (id = $1)\n" +
		"  ->  Seq Scan on t  (cost=0.00..1.00 rows=1 width=4)"
	if got := highlight.Plan(""); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := ansi.Strip(highlight.Plan(plan)); got != plan {
		t.Fatalf("Plan changed text: %q", got)
	}
}
