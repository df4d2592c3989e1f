package normalize

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Token is a lexical token reported by a Session. End is exclusive.
type Token struct {
	Start int
	End   int
}

// Session yields the tokens of one query text in source order.
type Session interface {
	// Next returns the next token, or false at end of input.
	Next() (Token, bool)
	Close() error
}

// Tokenizer opens scanning sessions. It must follow the same lexical rules
// as the Parser so that offsets line up.
type Tokenizer interface {
	Open(text string) (Session, error)
}

// Parser turns query text into a raw parse tree whose constants and
// parameter references carry byte offsets into the text.
type Parser interface {
	Parse(text string) (*pg_query.ParseResult, error)
}

// PgQuery is the Parser and Tokenizer backed by libpg_query, i.e. the
// PostgreSQL server's own grammar and scanner.
type PgQuery struct{}

// Parse implements Parser.
func (PgQuery) Parse(text string) (*pg_query.ParseResult, error) {
	return pg_query.Parse(text)
}

// Open implements Tokenizer. The whole text is scanned up front; the
// session then hands tokens out one at a time.
func (PgQuery) Open(text string) (Session, error) {
	res, err := pg_query.Scan(text)
	if err != nil {
		return nil, err
	}
	return &scanSession{tokens: res.GetTokens()}, nil
}

type scanSession struct {
	tokens []*pg_query.ScanToken
	pos    int
}

func (s *scanSession) Next() (Token, bool) {
	for s.pos < len(s.tokens) {
		t := s.tokens[s.pos]
		s.pos++

		// The server's core lexer never returns comments.
		switch t.GetToken() {
		case pg_query.Token_SQL_COMMENT, pg_query.Token_C_COMMENT:
			continue
		}
		return Token{Start: int(t.GetStart()), End: int(t.GetEnd())}, true
	}
	return Token{}, false
}

func (s *scanSession) Close() error {
	s.tokens = nil
	return nil
}
