package compressor

import (
	"context"
	"encoding/base64"
	"fmt"
)

const jpgDataURIHead = "data:image/jpg;base64,"

// Outcome records what happened to a candidate span.
type Outcome int

const (
	NoMatch Outcome = iota
	// Png left alone because png optimisation is off
	Skipped
	// Recompressed form was not smaller, original kept
	Kept
	Replaced
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no-match"
	case Skipped:
		return "skipped"
	case Kept:
		return "kept"
	case Replaced:
		return "replaced"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Recompressor turns a raw png or jpeg image into jpeg bytes encoded at
// the given quality. Implementations must be safe for concurrent use.
type Recompressor interface {
	Recompress(ctx context.Context, raw []byte, quality int) ([]byte, error)
}

// RecompressorFunc adapts a plain function to Recompressor.
type RecompressorFunc func(ctx context.Context, raw []byte, quality int) ([]byte, error)

func (f RecompressorFunc) Recompress(ctx context.Context, raw []byte, quality int) ([]byte, error) {
	return f(ctx, raw, quality)
}

// substitute decides the bytes emitted for one candidate span. On error the
// returned bytes are still the original span.
func (c *Compressor) substitute(ctx context.Context, span []byte) ([]byte, Outcome, error) {
	tag, ok := MatchTag(span)
	if !ok {
		return span, NoMatch, nil
	}
	if tag.Format == FormatPng && !c.opts.OptimisePngs {
		return span, Skipped, nil
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(tag.Payload)))
	n, err := base64.StdEncoding.Decode(raw, tag.Payload)
	if err != nil {
		return span, Failed, fmt.Errorf("%w: %v", ErrBase64Decode, err)
	}

	jpg, err := c.codec.Recompress(ctx, raw[:n], c.opts.Quality)
	if err != nil {
		return span, Failed, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	size := len(tag.Prefix) + len(jpgDataURIHead) + base64.StdEncoding.EncodedLen(len(jpg)) + len(tag.Suffix)
	if size >= tag.Len() {
		return span, Kept, nil
	}

	newTag := make([]byte, 0, size)
	newTag = append(newTag, tag.Prefix...)
	newTag = append(newTag, jpgDataURIHead...)
	newTag = base64.StdEncoding.AppendEncode(newTag, jpg)
	newTag = append(newTag, tag.Suffix...)
	return newTag, Replaced, nil
}
