package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/discord/lilliput"
)

// Default 3 routines to handle the job
const DefaultRoutines = 3

const (
	// Default buffer size in MiB, one buffer per routine.
	// Calculating buffer size to hold the data in image compression
	// is very complex. If you encountered error: "buffer too small to hold
	// image" then just increase the buffer size.
	//
	// Related issue: https://github.com/discord/lilliput/issues/38
	DefaultImageBufferSize = 16
	// Largest width or height lilliput is allowed to decode (8K)
	DefaultMaxImageSize = 8192
)

const jpegFileType = ".jpeg"

var (
	ErrTransformationError = errors.New("cannot transform the image")
	ErrProcessorStopped    = errors.New("processor stopped")
)

func EncodeOptions(quality int) map[int]int {
	return map[int]int{lilliput.JpegQuality: quality}
}

type ImageResult struct {
	// Object that contains the image transformation error
	TransformationError error

	// Jpeg bytes, owned by the caller
	Buffer []byte

	// This is used to signal other goroutine
	// which is waiting for the processed result
	context.Context
	// CancelFunc Shouldn't be called outside of the processor
	Cancel context.CancelFunc
}

type Image struct {
	Data    []byte
	Quality int

	// Contains the result of the image
	Result *ImageResult
}

type ImageProcessorOptions struct {
	// Max width and height lilliput will decode
	MaxImageSize int

	// Images wider or taller than this are downscaled to fit, 0 disables
	FitSize int

	// Transform buffer size in MiB
	BufferSize int

	// Number of routines/threads should be run
	Routines int
}

// ImageProcessor recompresses images to jpeg on a pool of routines. Every
// routine owns its ImageOps and output buffer since neither is safe to
// share.
type ImageProcessor struct {
	// Simple buffered queue for multiple the processor
	Queue chan *Image

	// Make use of context pattern
	// This is used for inter-process cancelling method
	context.Context
	Cancel context.CancelFunc

	ImageProcessorOptions
}

func NewImageProcessor(parentCtx context.Context, options ImageProcessorOptions) *ImageProcessor {
	ctx, cancel := func() (context.Context, context.CancelFunc) {
		ctx := context.Background()
		if parentCtx != nil {
			ctx = parentCtx
		}
		return context.WithCancel(ctx)
	}()
	return &ImageProcessor{
		Context: ctx,
		Cancel:  cancel,
		Queue:   make(chan *Image, 64),
		ImageProcessorOptions: ImageProcessorOptions{
			MaxImageSize: orDefault(options.MaxImageSize, DefaultMaxImageSize),
			FitSize:      options.FitSize,
			BufferSize:   orDefault(options.BufferSize, DefaultImageBufferSize),
			Routines:     orDefault(options.Routines, DefaultRoutines),
		},
	}
}

func orDefault(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}

func (p *ImageProcessor) Start() {
	log.Printf("Starting %d image routines\n", p.Routines)
	for i := 1; i <= p.Routines; i++ {
		go p.Run()
	}
}

func (p *ImageProcessor) AddImage(data []byte, quality int) (*ImageResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	image := &Image{
		Data:    data,
		Quality: quality,
		Result: &ImageResult{
			Context: ctx,
			Cancel:  cancel,
		},
	}
	select {
	case <-p.Done():
		cancel()
		return nil, ErrProcessorStopped
	case p.Queue <- image:
		return image.Result, nil
	}
}

// Recompress queues one image and waits for it, so the processor can serve
// as the compressor's codec.
func (p *ImageProcessor) Recompress(ctx context.Context, raw []byte, quality int) ([]byte, error) {
	result, err := p.AddImage(raw, quality)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.Done():
		return nil, ErrProcessorStopped
	case <-result.Done():
		return result.Buffer, result.TransformationError
	}
}

func (p *ImageProcessor) Run() {
	ops := lilliput.NewImageOps(p.MaxImageSize)
	buffer := make([]byte, p.BufferSize*1024*1024)
	for {
		select {
		case <-p.Done():
			ops.Close()
			log.Println("Image Processor stopped")
			return
		case image := <-p.Queue:
			image.Result.Buffer, image.Result.TransformationError = p.transform(ops, buffer, image)
			ops.Clear()
			image.Result.Cancel()
		}
	}
}

func (p *ImageProcessor) transform(ops *lilliput.ImageOps, buffer []byte, image *Image) ([]byte, error) {
	decoder, err := lilliput.NewDecoder(image.Data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", fmt.Errorf("%w: %v", ErrTransformationError, err))
	}
	defer decoder.Close()

	header, err := decoder.Header()
	if err != nil {
		return nil, fmt.Errorf("header: %w", fmt.Errorf("%w: %v", ErrTransformationError, err))
	}

	width, height, resize := FitSize(header.Width(), header.Height(), p.FitSize)
	opts := &lilliput.ImageOptions{
		FileType:             jpegFileType,
		Width:                width,
		Height:               height,
		NormalizeOrientation: true,
		ResizeMethod: func() lilliput.ImageOpsSizeMethod {
			if resize {
				return lilliput.ImageOpsFit
			}
			return lilliput.ImageOpsNoResize
		}(),
		EncodeOptions: EncodeOptions(image.Quality),
	}
	out, err := ops.Transform(decoder, opts, buffer)
	if err != nil {
		return nil, fmt.Errorf("transformation: %w", fmt.Errorf("%w: %v", ErrTransformationError, err))
	}
	// out aliases the routine's buffer
	return append([]byte(nil), out...), nil
}

// FitSize scales width and height down, keeping the aspect ratio, until
// both fit in maxSize. It reports whether any scaling is needed.
func FitSize(width, height, maxSize int) (int, int, bool) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height, false
	}
	ratio := math.Max(float64(width)/float64(maxSize), float64(height)/float64(maxSize))
	newWidth := int(math.Max(1, math.Round(float64(width)/ratio)))
	newHeight := int(math.Max(1, math.Round(float64(height)/ratio)))
	return newWidth, newHeight, true
}
