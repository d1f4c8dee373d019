package compressor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScannerSegments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Segment
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "plain text",
			input: "hello world",
			want:  []Segment{{Span{0, 11}, Literal}},
		},
		{
			name:  "other element",
			input: "a<svg>b",
			want: []Segment{
				{Span{0, 1}, Literal},
				{Span{1, 7}, Literal},
			},
		},
		{
			name:  "image element",
			input: "x<image href=\"a\"/>y",
			want: []Segment{
				{Span{0, 1}, Literal},
				{Span{1, 18}, Candidate},
				{Span{18, 19}, Literal},
			},
		},
		{
			name:  "unterminated",
			input: "ab<image xlink:href=\"",
			want: []Segment{
				{Span{0, 2}, Literal},
				{Span{2, 21}, Unterminated},
			},
		},
		{
			name:  "short window at end",
			input: "ab<ima",
			want: []Segment{
				{Span{0, 2}, Literal},
				{Span{2, 6}, Literal},
			},
		},
		{
			name:  "lone open bracket at end",
			input: "ab<",
			want: []Segment{
				{Span{0, 2}, Literal},
				{Span{2, 3}, Literal},
			},
		},
		{
			name:  "window swallows next bracket",
			input: "<a<image>",
			want: []Segment{
				{Span{0, 6}, Literal},
				{Span{6, 9}, Literal},
			},
		},
		{
			name:  "two images",
			input: "<image a><image b>",
			want: []Segment{
				{Span{0, 9}, Candidate},
				{Span{9, 18}, Candidate},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segments([]byte(tt.input))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScannerSegmentsTileInput(t *testing.T) {
	inputs := []string{
		"",
		"<",
		"<<<<<<<<",
		"<image",
		"<image>",
		"<imagex> <image <image>>",
		"text <image xlink:href=\"data:image/png;base64,AAAA\"/> more <g><image",
	}
	for _, in := range inputs {
		pos := 0
		for _, seg := range Segments([]byte(in)) {
			if seg.Start != pos {
				t.Fatalf("%q: segment starts at %d, want %d", in, seg.Start, pos)
			}
			if seg.Len() <= 0 {
				t.Fatalf("%q: empty segment at %d", in, seg.Start)
			}
			pos = seg.End
		}
		if pos != len(in) {
			t.Fatalf("%q: segments end at %d, want %d", in, pos, len(in))
		}
	}
}
