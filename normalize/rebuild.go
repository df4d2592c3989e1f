package normalize

import (
	"strconv"
	"strings"
)

// placeholderWidth is the widest "$n" for a 32-bit n. Every constant is at
// least one byte, so len(text)+spans*placeholderWidth always fits.
const placeholderWidth = 11

// Rebuild resolves the spans of set against text and returns text with
// every resolved constant replaced by a $n placeholder. Placeholders are
// numbered left to right starting after set.HighestParam.
func Rebuild(set *SpanSet, text string, tok Tokenizer) (string, error) {
	if err := Resolve(set, text, tok); err != nil {
		return "", err
	}
	q, _ := splice(set, text, false)
	return q, nil
}

// splice writes the normalized text for already resolved spans. With
// collect set it also returns the replaced source text of each span.
func splice(set *SpanSet, text string, collect bool) (string, []string) {
	var b strings.Builder
	b.Grow(len(text) + len(set.spans)*placeholderWidth)

	var literals []string
	cursor, n := 0, 0
	for _, sp := range set.spans {
		if !sp.Resolved() || sp.Offset < cursor || sp.Offset > len(text) {
			continue
		}
		end := min(sp.Offset+sp.Length, len(text))

		b.WriteString(text[cursor:sp.Offset])
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n + set.HighestParam))
		if collect {
			literals = append(literals, text[sp.Offset:end])
		}
		cursor = end
	}
	b.WriteString(text[cursor:])

	return b.String(), literals
}
