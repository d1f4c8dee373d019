package processor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aperture147/svgc/compressor"
	"github.com/aperture147/svgc/util"
)

var (
	ErrNilCodec      = errors.New("nil image codec")
	ErrImagesChanged = errors.New("image elements changed")
)

type SvgResult struct {
	// Object that contains the SVG compression error
	ConvertError error

	// Processed document
	Buffer []byte

	Stats compressor.Stats

	// This is used to signal other goroutine
	// which is waiting for the processed result
	context.Context
	// CancelFunc Shouldn't be called outside of the processor
	Cancel context.CancelFunc
}

type SvgOptions struct {
	Compressor compressor.Options

	// Run the minifier over the result, kept only when it is smaller
	Minify bool

	// Re-parse input and output as XML and refuse output that lost an
	// image or stopped parsing
	Strict bool
}

// Key identifies the settings that change the output, for cache keys.
func (o SvgOptions) Key() string {
	return fmt.Sprintf("q%d-png%t-min%t-strict%t-%v",
		o.Compressor.Quality, o.Compressor.OptimisePngs, o.Minify, o.Strict, o.Compressor.OnError)
}

type Svg struct {
	Data    []byte
	Options SvgOptions
	Result  *SvgResult

	// Context of the caller waiting for the result. Work on the document
	// stops once it is done.
	Context context.Context
}

type SvgProcessorOptions struct {
	// Number of routines/threads should be run
	Routines int

	// Codec every routine hands embedded images to
	Codec compressor.Recompressor
}

type SvgProcessor struct {
	Queue chan *Svg

	// Make use of context pattern
	// This is used for inter-process cancelling method
	context.Context
	Cancel context.CancelFunc

	SvgProcessorOptions
}

func NewSvgProcessor(parentCtx context.Context, options SvgProcessorOptions) (*SvgProcessor, error) {
	if options.Codec == nil {
		return nil, ErrNilCodec
	}
	ctx, cancel := func() (context.Context, context.CancelFunc) {
		ctx := context.Background()
		if parentCtx != nil {
			ctx = parentCtx
		}
		return context.WithCancel(ctx)
	}()
	return &SvgProcessor{
		Context: ctx,
		Cancel:  cancel,
		Queue:   make(chan *Svg, 10), // is 10 too much?
		SvgProcessorOptions: SvgProcessorOptions{
			Routines: orDefault(options.Routines, DefaultRoutines),
			Codec:    options.Codec,
		},
	}, nil
}

func (p *SvgProcessor) Start() {
	log.Printf("Starting %d svg routines\n", p.Routines)
	for i := 1; i <= p.Routines; i++ {
		go p.Run()
	}
}

func (p *SvgProcessor) AddSvg(ctx context.Context, data []byte, opts SvgOptions) (*SvgResult, error) {
	resultCtx, cancel := context.WithCancel(context.Background())
	result := &SvgResult{
		Context: resultCtx,
		Cancel:  cancel,
	}
	select {
	case <-p.Done():
		cancel()
		return nil, ErrProcessorStopped
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case p.Queue <- &Svg{Data: data, Options: opts, Result: result, Context: ctx}:
		return result, nil
	}
}

func (p *SvgProcessor) Run() {
	for {
		select {
		case <-p.Done():
			log.Println("Svg Processor stopped")
			return
		case svg := <-p.Queue:
			buf, stats, err := p.process(svg)
			if err != nil {
				svg.Result.ConvertError = fmt.Errorf("svg: %w", err)
			} else {
				svg.Result.Buffer = buf
				svg.Result.Stats = stats
			}
			svg.Result.Cancel()
		}
	}
}

func (p *SvgProcessor) process(svg *Svg) ([]byte, compressor.Stats, error) {
	c, err := compressor.New(p.Codec, svg.Options.Compressor)
	if err != nil {
		return nil, compressor.Stats{}, err
	}

	var before util.SvgInfo
	if svg.Options.Strict {
		if before, err = util.InspectSvg(svg.Data); err != nil {
			return nil, compressor.Stats{}, err
		}
	}

	ctx, cancel := context.WithCancel(svg.Context)
	defer cancel()
	stop := context.AfterFunc(p.Context, cancel)
	defer stop()

	result, err := c.Compress(ctx, svg.Data)
	if err != nil {
		return nil, compressor.Stats{}, err
	}
	out := result.Output

	if svg.Options.Minify {
		minified, err := util.MinifySvg(out)
		if err != nil {
			log.Printf("svg minify failed, keeping unminified output: %v\n", err)
		} else if len(minified) < len(out) {
			out = minified
		}
	}

	if svg.Options.Strict {
		after, err := util.InspectSvg(out)
		if err != nil {
			return nil, compressor.Stats{}, fmt.Errorf("output check: %w", err)
		}
		if after != before {
			return nil, compressor.Stats{}, fmt.Errorf("output check: %w: images %+v became %+v", ErrImagesChanged, before, after)
		}
	}

	stats := result.Stats
	stats.BytesOut = len(out)
	return out, stats, nil
}
