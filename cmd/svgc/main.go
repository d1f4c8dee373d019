package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aperture147/svgc/codec"
	"github.com/aperture147/svgc/compressor"
	"github.com/aperture147/svgc/processor"
	"github.com/aperture147/svgc/util"
)

const usage = `Usage: svgc [options] -i <input> [-o <output>]

Recompresses the png and jpeg images embedded in an svg (or svgz) file.

Options:
`

var ErrNoInput = errors.New("no input file specified")

// Version indicates the current build version.
var Version = "dev"

type options struct {
	input      string
	output     string
	quality    int
	optimise   bool
	codec      string
	magickPath string
	workers    int
	maxDim     int
	minify     bool
	strict     bool
	verbose    bool
}

type report struct {
	input, output string
	before, after int64
	stats         compressor.Stats
	elapsed       time.Duration
}

func (r report) String() string {
	saved := "-"
	if diff := r.before - r.after; diff > 0 {
		saved = util.Green(fmt.Sprintf("Saved %s, %.2f%%", util.HumanSize(diff), util.SavedPercent(r.before, r.after)))
	}
	return fmt.Sprintf("%s (%s) -> %s (%s): %s",
		filepath.Base(r.input), util.HumanSize(r.before),
		filepath.Base(r.output), util.HumanSize(r.after), saved)
}

// defaultOutput names the result after the input, in the working directory.
func defaultOutput(input string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".svg", ".svgz":
		return strings.TrimSuffix(base, ext) + "-compressed" + ext
	default:
		return base + "-compressed.svg"
	}
}

func newCodec(ctx context.Context, opts options) (compressor.Recompressor, error) {
	switch opts.codec {
	case "imaging":
		return codec.NewImaging(opts.maxDim), nil
	case "magick":
		return codec.NewMagick(opts.magickPath, opts.maxDim), nil
	case "lilliput":
		p := processor.NewImageProcessor(ctx, processor.ImageProcessorOptions{
			FitSize:  opts.maxDim,
			Routines: opts.workers,
		})
		p.Start()
		return p, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", opts.codec)
	}
}

func run(ctx context.Context, opts options) (*report, error) {
	if opts.input == "" {
		return nil, ErrNoInput
	}
	if opts.output == "" {
		opts.output = defaultOutput(opts.input)
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	document := data
	gzipped := util.IsGzip(data)
	if gzipped {
		if document, err = util.Gunzip(data); err != nil {
			return nil, err
		}
	}

	rc, err := newCodec(ctx, opts)
	if err != nil {
		return nil, err
	}
	if p, ok := rc.(*processor.ImageProcessor); ok {
		defer p.Cancel()
	}

	copts := compressor.DefaultOptions()
	copts.Quality = opts.quality
	copts.OptimisePngs = opts.optimise
	copts.Workers = opts.workers
	copts.Verbose = opts.verbose
	if opts.strict {
		copts.OnError = compressor.Abort
	}
	c, err := compressor.New(rc, copts)
	if err != nil {
		return nil, err
	}

	result, err := c.Compress(ctx, document)
	if err != nil {
		return nil, err
	}
	out := result.Output
	if opts.minify {
		if minified, err := util.MinifySvg(out); err != nil {
			log.Printf("minify failed, keeping unminified output: %v\n", err)
		} else if len(minified) < len(out) {
			out = minified
		}
	}
	if gzipped {
		if out, err = util.Gzip(out); err != nil {
			return nil, err
		}
	}

	if err := os.WriteFile(opts.output, out, 0644); err != nil {
		return nil, err
	}
	return &report{
		input:   opts.input,
		output:  opts.output,
		before:  int64(len(data)),
		after:   int64(len(out)),
		stats:   result.Stats,
		elapsed: time.Since(start),
	}, nil
}

// parseFlags reads the command line into options.
func parseFlags(name string, args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&opts.input, "i", "", "Input file (shorthand)")
	fs.StringVar(&opts.input, "input", "", "Input file")
	fs.StringVar(&opts.output, "o", "", "Output file (shorthand)")
	fs.StringVar(&opts.output, "output", "", "Output file, defaults to <input>-compressed.svg")
	fs.IntVar(&opts.quality, "q", compressor.DefaultQuality, "JPEG quality (shorthand)")
	fs.IntVar(&opts.quality, "quality", compressor.DefaultQuality, "JPEG quality, 1-100")
	fs.BoolVar(&opts.optimise, "a", false, "Optimise PNG images (shorthand)")
	fs.BoolVar(&opts.optimise, "optimise-pngs", false, "Also recompress PNG images, by default only JPEG images are touched")
	fs.StringVar(&opts.codec, "codec", "imaging", "Image codec: imaging, magick or lilliput")
	fs.StringVar(&opts.magickPath, "magick", codec.DefaultMagickPath, "ImageMagick binary for -codec magick")
	fs.IntVar(&opts.workers, "workers", 1, "Number of images recompressed concurrently, 0 uses every CPU")
	fs.IntVar(&opts.maxDim, "max-dim", 0, "Downscale images larger than this to fit, 0 disables")
	fs.BoolVar(&opts.minify, "minify", false, "Minify the resulting svg")
	fs.BoolVar(&opts.strict, "strict", false, "Fail on the first image that cannot be recompressed")
	fs.BoolVar(&opts.verbose, "v", false, "Log skipped images")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nVersion: %s\n", Version)
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" {
		fmt.Fprintln(fs.Output(), ErrNoInput)
		fmt.Fprintln(fs.Output())
		fs.Usage()
		return opts, ErrNoInput
	}
	return opts, nil
}

func main() {
	log.SetFlags(0)

	opts, err := parseFlags(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spinner := util.NewSpinner("Compressing...", 100*time.Millisecond, os.Stderr)
	spinner.Start()
	rep, err := run(ctx, opts)
	spinner.Stop()
	if err != nil {
		log.Fatalf("%s%v%s\n", util.ErrorColor, err, util.DefaultColor)
	}

	fmt.Printf("Done in %s!\n", rep.elapsed.Round(time.Millisecond))
	if opts.verbose {
		s := rep.stats
		fmt.Printf("%d images: %d replaced, %d kept, %d skipped, %d failed\n",
			s.Matched, s.Replaced, s.Kept, s.Skipped, s.Failed)
	}
	fmt.Println(rep)
}
