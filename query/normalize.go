package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fabriziomello/pg-normalize-query/normalize"
)

// Unparsable is what FallbackRedact returns for text that does not parse.
const Unparsable = "<unparsable query>"

// Fallback selects what Normalize returns for text the parser rejects.
type Fallback int

const (
	FallbackNone    Fallback = iota // return the syntax error
	FallbackRaw                     // return the input unchanged
	FallbackRedact                  // return Unparsable
	FallbackLexical                 // scrub literals without parsing
)

func (f Fallback) String() string {
	switch f {
	case FallbackNone:
		return "none"
	case FallbackRaw:
		return "raw"
	case FallbackRedact:
		return "redact"
	case FallbackLexical:
		return "lexical"
	}
	return fmt.Sprintf("Fallback(%d)", int(f))
}

// ParseFallback converts a name such as "lexical" into a Fallback.
func ParseFallback(s string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FallbackNone, nil
	case "raw":
		return FallbackRaw, nil
	case "redact":
		return FallbackRedact, nil
	case "lexical":
		return FallbackLexical, nil
	}
	return FallbackNone, fmt.Errorf("query: unknown fallback %q", s)
}

// Normalizer normalizes with the parser-based engine and applies a
// Fallback when the text does not parse.
type Normalizer struct {
	engine   *normalize.Normalizer
	fallback Fallback
}

// NewNormalizer creates a Normalizer. A nil engine uses the libpg_query
// defaults.
func NewNormalizer(engine *normalize.Normalizer, fallback Fallback) *Normalizer {
	if engine == nil {
		engine = normalize.New()
	}
	return &Normalizer{engine: engine, fallback: fallback}
}

// Fallback returns the configured fallback mode.
func (n *Normalizer) Fallback() Fallback {
	return n.fallback
}

// Normalize replaces literal values in sql with $n placeholders so that
// structurally identical queries can be grouped together.
func (n *Normalizer) Normalize(sql string) (string, error) {
	res, err := n.Extract(sql)
	if err != nil {
		return "", err
	}
	return res.Query, nil
}

// Extract normalizes sql like Normalize and also reports the replaced
// literals. Fallback output carries no literals.
func (n *Normalizer) Extract(sql string) (*normalize.Result, error) {
	if sql == "" {
		return &normalize.Result{}, nil
	}

	res, err := n.engine.Extract(sql)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, normalize.ErrSyntax) {
		return nil, fmt.Errorf("query: normalize: %w", err)
	}

	switch n.fallback {
	case FallbackRaw:
		return &normalize.Result{Query: sql}, nil
	case FallbackRedact:
		return &normalize.Result{Query: Unparsable}, nil
	case FallbackLexical:
		return &normalize.Result{Query: Lexical(sql)}, nil
	case FallbackNone:
	}
	return nil, fmt.Errorf("query: normalize: %w", err)
}

// Normalize normalizes sql with the default engine.
func Normalize(sql string, fallback Fallback) (string, error) {
	return NewNormalizer(nil, fallback).Normalize(sql)
}
