package normalize

import "slices"

// Sentinel lengths for spans that must not be replaced.
const (
	LengthUnknown = -1 // never reached by the tokenizer
	LengthIgnored = -2 // duplicate of an earlier offset
)

// Span is the byte range of one constant in the query text.
type Span struct {
	Offset int
	Length int
}

// Resolved reports whether the span will be replaced by a placeholder.
func (s Span) Resolved() bool {
	return s.Length >= 0
}

// SpanSet collects constant offsets and the highest $n parameter seen
// while walking one parse tree. It belongs to a single normalization call.
type SpanSet struct {
	spans        []Span
	HighestParam int
}

// NewSpanSet returns an empty SpanSet.
func NewSpanSet() *SpanSet {
	return &SpanSet{spans: make([]Span, 0, 32)}
}

// Record appends a constant starting at offset. Negative offsets mean the
// parser did not know the location and are dropped.
func (s *SpanSet) Record(offset int) {
	if offset < 0 {
		return
	}
	s.spans = append(s.spans, Span{Offset: offset, Length: LengthUnknown})
}

// ObserveParam tracks an existing $n reference so that new placeholders
// are numbered after it.
func (s *SpanSet) ObserveParam(n int) {
	if n > s.HighestParam {
		s.HighestParam = n
	}
}

// Len returns the number of recorded spans, duplicates included.
func (s *SpanSet) Len() int {
	return len(s.spans)
}

// Spans returns a copy of the recorded spans.
func (s *SpanSet) Spans() []Span {
	return slices.Clone(s.spans)
}
