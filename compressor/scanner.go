package compressor

import "bytes"

var (
	openMarker = []byte("<image")
	closeByte  = byte('>')
)

// Span is a half-open byte range [Start, End) of the input.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

type SegmentKind int

const (
	// Literal bytes are copied to the output as they are
	Literal SegmentKind = iota
	// Candidate is a complete "<image ... >" element
	Candidate
	// Unterminated is an "<image" marker with no '>' after it. It always
	// runs to the end of the input.
	Unterminated
)

type Segment struct {
	Span
	Kind SegmentKind
}

// Scanner splits a document into consecutive segments in a single forward
// pass. The segments tile the input: each one starts where the previous
// one ended, the first starts at 0 and the last ends at len(input).
type Scanner struct {
	input []byte
	pos   int
}

func NewScanner(input []byte) *Scanner {
	return &Scanner{input: input}
}

// Next returns the next segment, or false once the input is exhausted.
func (s *Scanner) Next() (Segment, bool) {
	n := len(s.input)
	if s.pos >= n {
		return Segment{}, false
	}
	start := s.pos

	i := bytes.IndexByte(s.input[start:], '<')
	switch {
	case i < 0:
		s.pos = n
		return Segment{Span{start, n}, Literal}, true
	case i > 0:
		s.pos = start + i
		return Segment{Span{start, s.pos}, Literal}, true
	}

	// The window never reaches past the end of the input. A short window
	// cannot equal the marker and is copied like any other.
	end := start + len(openMarker)
	if end > n {
		end = n
	}
	if !bytes.Equal(s.input[start:end], openMarker) {
		s.pos = end
		return Segment{Span{start, end}, Literal}, true
	}

	j := bytes.IndexByte(s.input[end:], closeByte)
	if j < 0 {
		s.pos = n
		return Segment{Span{start, n}, Unterminated}, true
	}
	s.pos = end + j + 1
	return Segment{Span{start, s.pos}, Candidate}, true
}

// Segments scans the whole input at once.
func Segments(input []byte) []Segment {
	var segs []Segment
	s := NewScanner(input)
	for seg, ok := s.Next(); ok; seg, ok = s.Next() {
		segs = append(segs, seg)
	}
	return segs
}
