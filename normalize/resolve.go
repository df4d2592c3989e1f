package normalize

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrScan is returned when the query text cannot be tokenized.
var ErrScan = errors.New("normalize: scan failed")

// Resolve sorts the spans of set by offset and fills in the byte length of
// each constant by re-scanning text.
//
// A repeated offset is marked LengthIgnored. If the tokenizer runs out of
// input before reaching a span, that span and every later one stay
// LengthUnknown. A token that starts past the recorded offset is used as
// is; this can only happen on inputs the parser and scanner disagree on.
func Resolve(set *SpanSet, text string, tok Tokenizer) error {
	spans := set.spans
	slices.SortFunc(spans, func(a, b Span) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	if len(spans) == 0 {
		return nil
	}

	sess, err := tok.Open(text)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScan, err)
	}
	defer func() { _ = sess.Close() }()

	last := -1
	for i := range spans {
		off := spans[i].Offset
		if off <= last {
			spans[i].Length = LengthIgnored
			continue
		}

		end, ok := seek(sess, text, off)
		if !ok {
			break
		}
		spans[i].Length = trimUnicodeEscape(text, off, end-off)
		last = off
	}
	return nil
}

// seek advances sess to the token at or after off and returns the end of
// the constant starting there.
func seek(sess Session, text string, off int) (int, bool) {
	for {
		t, ok := sess.Next()
		if !ok {
			return 0, false
		}
		if t.Start < off {
			continue
		}

		// A negative number is a '-' token followed by the value; the span
		// covers both so that 1 and -2 normalize the same.
		if off < len(text) && text[off] == '-' {
			if t, ok = sess.Next(); !ok {
				return 0, false
			}
		}
		return max(t.End, off), true
	}
}

// trimUnicodeEscape drops whitespace the scanner swallowed after a U&'...'
// string while looking for a UESCAPE clause.
func trimUnicodeEscape(text string, off, n int) int {
	if n <= 4 || off+2 >= len(text) {
		return n
	}
	if (text[off] != 'u' && text[off] != 'U') || text[off+1] != '&' || text[off+2] != '\'' {
		return n
	}
	for n > 0 && off+n <= len(text) && isSpace(text[off+n-1]) {
		n--
	}
	return n
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
