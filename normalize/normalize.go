// Package normalize replaces the literal constants of a PostgreSQL query
// with $n placeholders so that queries differing only in their values
// share one canonical text.
package normalize

import (
	"errors"
	"fmt"
)

// ErrSyntax matches every *SyntaxError.
var ErrSyntax = errors.New("normalize: syntax error")

// SyntaxError is returned when the query cannot be parsed. No output is
// produced in that case.
type SyntaxError struct {
	Query string
	Err   error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("normalize: syntax error: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// Result is the outcome of Extract.
type Result struct {
	// Query is the normalized text.
	Query string
	// Literals holds the replaced source text in placeholder order:
	// Literals[i] was replaced by $(HighestParam+i+1).
	Literals []string
	// HighestParam is the largest $n the input already contained.
	HighestParam int
}

// Normalizer normalizes query texts. It holds no per-call state and is
// safe for concurrent use as long as its Parser and Tokenizer are.
type Normalizer struct {
	parser    Parser
	tokenizer Tokenizer
	maxDepth  int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMaxDepth sets the parse tree nesting limit. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.maxDepth = n
		}
	}
}

// WithParser replaces the libpg_query parser.
func WithParser(p Parser) Option {
	return func(nz *Normalizer) { nz.parser = p }
}

// WithTokenizer replaces the libpg_query scanner.
func WithTokenizer(t Tokenizer) Option {
	return func(nz *Normalizer) { nz.tokenizer = t }
}

// New creates a Normalizer using libpg_query unless overridden.
func New(opts ...Option) *Normalizer {
	nz := &Normalizer{
		parser:    PgQuery{},
		tokenizer: PgQuery{},
		maxDepth:  DefaultMaxDepth,
	}
	for _, o := range opts {
		o(nz)
	}
	return nz
}

// Normalize returns query with its constants replaced by placeholders.
func (nz *Normalizer) Normalize(query string) (string, error) {
	res, err := nz.Extract(query)
	if err != nil {
		return "", err
	}
	return res.Query, nil
}

// Extract normalizes query and also reports the replaced literals.
func (nz *Normalizer) Extract(query string) (*Result, error) {
	tree, err := nz.parser.Parse(query)
	if err != nil {
		return nil, &SyntaxError{Query: query, Err: err}
	}

	set := NewSpanSet()
	if err := Walk(tree, set, nz.maxDepth); err != nil {
		return nil, err
	}
	if err := Resolve(set, query, nz.tokenizer); err != nil {
		return nil, err
	}

	q, literals := splice(set, query, true)
	return &Result{
		Query:        q,
		Literals:     literals,
		HighestParam: set.HighestParam,
	}, nil
}

var defaultNormalizer = New()

// Normalize normalizes query with the default libpg_query Normalizer.
func Normalize(query string) (string, error) {
	return defaultNormalizer.Normalize(query)
}
