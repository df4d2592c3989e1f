package query_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/fabriziomello/pg-normalize-query/normalize"
	"github.com/fabriziomello/pg-normalize-query/query"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	const broken = "SELECT * FROM users WHERE name = 'alice' AND"

	tests := []struct {
		name     string
		in       string
		fallback query.Fallback
		want     string
		wantErr  bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "string literal", in: "SELECT id FROM users WHERE name = 'alice'", want: "SELECT id FROM users WHERE name = $1"},
		{name: "pg param kept", in: "SELECT 1 FROM t WHERE id = $1 AND name = $2", want: "SELECT $3 FROM t WHERE id = $1 AND name = $2"},
		{name: "whitespace kept", in: "SELECT  id\n\tFROM  users WHERE id = 7", want: "SELECT  id\n\tFROM  users WHERE id = $1"},
		{name: "unparsable none", in: broken, fallback: query.FallbackNone, wantErr: true},
		{name: "unparsable raw", in: broken, fallback: query.FallbackRaw, want: broken},
		{name: "unparsable redact", in: broken, fallback: query.FallbackRedact, want: query.Unparsable},
		{name: "unparsable lexical", in: broken, fallback: query.FallbackLexical, want: "SELECT * FROM users WHERE name = $1 AND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := query.Normalize(tt.in, tt.fallback)
			if tt.wantErr {
				if !errors.Is(err, normalize.ErrSyntax) {
					t.Fatalf("expected syntax error, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q)\n got  %q\n want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizer_EngineErrorIgnoresFallback(t *testing.T) {
	t.Parallel()

	n := query.NewNormalizer(normalize.New(normalize.WithMaxDepth(2)), query.FallbackRaw)
	if _, err := n.Normalize("SELECT 1"); !errors.Is(err, normalize.ErrTooDeep) {
		t.Fatalf("got %v, want ErrTooDeep", err)
	}
}

func TestNormalizer_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fallback query.Fallback
		in       string
		want     string
		literals []string
	}{
		{"parsed", query.FallbackNone, "SELECT $1, 42, 'abc'", "SELECT $1, $2, $3", []string{"42", "'abc'"}},
		{"empty", query.FallbackNone, "", "", nil},
		{"raw", query.FallbackRaw, "SELEC 'x'", "SELEC 'x'", nil},
		{"redact", query.FallbackRedact, "SELEC 'x'", query.Unparsable, nil},
		{"lexical", query.FallbackLexical, "SELEC 'x'", "SELEC $1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := query.NewNormalizer(nil, tt.fallback).Extract(tt.in)
			if err != nil {
				t.Fatalf("Extract(%q): %v", tt.in, err)
			}
			if res.Query != tt.want {
				t.Errorf("query: got %q, want %q", res.Query, tt.want)
			}
			if !slices.Equal(res.Literals, tt.literals) {
				t.Errorf("literals: got %q, want %q", res.Literals, tt.literals)
			}
		})
	}

	if _, err := query.NewNormalizer(nil, query.FallbackNone).Extract("SELEC 1"); !errors.Is(err, normalize.ErrSyntax) {
		t.Fatalf("got %v, want ErrSyntax", err)
	}
}

func TestLexical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"string literal", "WHERE name = 'alice'", "WHERE name = $1"},
		{"escaped quote", "WHERE name = 'it''s'", "WHERE name = $1"},
		{"escape string", "WHERE name = E'a\\n'", "WHERE name = $1"},
		{"numeric literal", "SELECT id, name FROM users WHERE id = 42", "SELECT id, name FROM users WHERE id = $1"},
		{"float literal", "WHERE score > 3.14", "WHERE score > $1"},
		{"pg param kept", "WHERE id = $1 AND name = $2", "WHERE id = $1 AND name = $2"},
		{"in list", "WHERE id IN (1, 2, 3)", "WHERE id IN ($1, $2, $3)"},
		{"numbered after params", "WHERE id = 42 AND name = 'bob' AND status = $1", "WHERE id = $2 AND name = $3 AND status = $1"},
		{"no replace in identifier", "SELECT t1.id FROM t1", "SELECT t1.id FROM t1"},
		{"negative number", "WHERE x = -5", "WHERE x = -$1"},
		{"unterminated string", "WHERE a = 'oops", "WHERE a = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := query.Lexical(tt.in)
			if got != tt.want {
				t.Errorf("Lexical(%q)\n got  %q\n want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFallback(t *testing.T) {
	t.Parallel()

	for _, f := range []query.Fallback{query.FallbackNone, query.FallbackRaw, query.FallbackRedact, query.FallbackLexical} {
		got, err := query.ParseFallback(f.String())
		if err != nil {
			t.Fatalf("ParseFallback(%q): %v", f.String(), err)
		}
		if got != f {
			t.Fatalf("got %v, want %v", got, f)
		}
	}

	if _, err := query.ParseFallback("bogus"); err == nil {
		t.Fatal("expected error for unknown fallback")
	}
}
