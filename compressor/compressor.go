// Package compressor shrinks SVG documents by recompressing the png and
// jpeg images embedded in them as base64 data URIs.
//
// The document is treated as a byte stream: only "<image ...>" elements
// carrying a data URI are ever rewritten, and only when the rewritten
// element is strictly shorter than the original. Every other byte is
// copied unchanged.
package compressor

import (
	"context"
	"log"
	"sync"
)

type Stats struct {
	// Complete "<image ...>" elements found
	Candidates int
	// Candidates holding a supported data URI
	Matched  int
	Replaced int
	Kept     int
	Skipped  int
	Failed   int
	// "<image" markers without a closing '>'
	Unterminated int

	BytesIn  int
	BytesOut int
}

// Saved is the number of bytes the document shrank by.
func (s Stats) Saved() int {
	return s.BytesIn - s.BytesOut
}

type Result struct {
	Output []byte
	Stats  Stats
}

type Compressor struct {
	codec Recompressor
	opts  Options
}

func New(codec Recompressor, opts Options) (*Compressor, error) {
	if codec == nil {
		return nil, ErrNilCodec
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Compressor{codec: codec, opts: opts}, nil
}

func (c *Compressor) Options() Options {
	return c.opts
}

// Compress processes one document. The input is never modified. The only
// errors returned are context errors and, under the Abort policy, the
// first decode or codec failure.
func (c *Compressor) Compress(ctx context.Context, input []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.opts.workers() > 1 {
		return c.compressParallel(ctx, input)
	}

	out := NewOutput(len(input))
	stats := Stats{BytesIn: len(input)}
	scanner := NewScanner(input)
	for seg, ok := scanner.Next(); ok; seg, ok = scanner.Next() {
		span := input[seg.Start:seg.End]
		if seg.Kind != Candidate {
			c.emitLiteral(out, seg, span, &stats)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emitted, outcome, subErr := c.substitute(ctx, span)
		if err := c.emitCandidate(ctx, out, seg, emitted, outcome, subErr, &stats); err != nil {
			return nil, err
		}
	}
	stats.BytesOut = out.Len()
	return &Result{Output: out.Bytes(), Stats: stats}, nil
}

type decided struct {
	bytes   []byte
	outcome Outcome
	err     error
}

// compressParallel finds every span first, recompresses the candidates on
// a bounded set of workers and then assembles the output in document order.
func (c *Compressor) compressParallel(ctx context.Context, input []byte) (*Result, error) {
	segs := Segments(input)
	results := make([]decided, len(segs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		abortErr error
		wg       sync.WaitGroup
	)
	jobs := make(chan int)
	for w := 0; w < c.opts.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				seg := segs[i]
				b, outcome, err := c.substitute(ctx, input[seg.Start:seg.End])
				results[i] = decided{bytes: b, outcome: outcome, err: err}
				if err != nil && c.opts.OnError == Abort {
					once.Do(func() {
						abortErr = err
						cancel()
					})
				}
			}
		}()
	}

feed:
	for i, seg := range segs {
		if seg.Kind != Candidate {
			continue
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if abortErr != nil {
		return nil, abortErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := NewOutput(len(input))
	stats := Stats{BytesIn: len(input)}
	for i, seg := range segs {
		if seg.Kind != Candidate {
			c.emitLiteral(out, seg, input[seg.Start:seg.End], &stats)
			continue
		}
		r := results[i]
		if err := c.emitCandidate(ctx, out, seg, r.bytes, r.outcome, r.err, &stats); err != nil {
			return nil, err
		}
	}
	stats.BytesOut = out.Len()
	return &Result{Output: out.Bytes(), Stats: stats}, nil
}

func (c *Compressor) emitLiteral(out *Output, seg Segment, span []byte, stats *Stats) {
	if seg.Kind == Unterminated {
		stats.Unterminated++
	}
	out.Write(span)
}

// emitCandidate appends the decided bytes for one candidate span. On
// failure the original span is in emitted already, so pass-through only
// needs the bookkeeping.
func (c *Compressor) emitCandidate(ctx context.Context, out *Output, seg Segment, emitted []byte, outcome Outcome, err error, stats *Stats) error {
	stats.Candidates++
	if outcome != NoMatch {
		stats.Matched++
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if c.opts.OnError == Abort {
			return err
		}
		if c.opts.Verbose {
			log.Printf("svgc: image at offset %d %s: %v\n", seg.Start, outcome, err)
		}
	}
	switch outcome {
	case Replaced:
		stats.Replaced++
	case Kept:
		stats.Kept++
	case Skipped:
		stats.Skipped++
	case Failed:
		stats.Failed++
	}
	out.Write(emitted)
	return nil
}
