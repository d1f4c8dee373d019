package compressor

import (
	"fmt"
	"runtime"
)

const (
	DefaultQuality = 90
	MinQuality     = 1
	MaxQuality     = 100
)

// Policy decides what happens to a tag whose payload cannot be decoded
// or recompressed.
type Policy int

const (
	// PassThrough emits the original tag bytes and carries on.
	PassThrough Policy = iota
	// Abort stops the whole operation and returns the error.
	Abort
)

func (p Policy) String() string {
	switch p {
	case PassThrough:
		return "pass-through"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

type Options struct {
	// Leave png data URIs untouched when false
	OptimisePngs bool

	// JPEG quality handed to the recompressor, 1..100
	Quality int

	// Number of tags recompressed concurrently, 1 means fully sequential
	Workers int

	OnError Policy

	// Log every skipped tag
	Verbose bool
}

func DefaultOptions() Options {
	return Options{
		OptimisePngs: true,
		Quality:      DefaultQuality,
		Workers:      1,
		OnError:      PassThrough,
	}
}

func (o Options) Validate() error {
	if o.Quality < MinQuality || o.Quality > MaxQuality {
		return fmt.Errorf("quality %d: %w", o.Quality, ErrInvalidQuality)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers %d: %w", o.Workers, ErrInvalidWorkers)
	}
	if o.OnError != PassThrough && o.OnError != Abort {
		return fmt.Errorf("%v: %w", o.OnError, ErrInvalidPolicy)
	}
	return nil
}

func (o Options) workers() int {
	switch {
	case o.Workers <= 0:
		return runtime.NumCPU()
	default:
		return o.Workers
	}
}
