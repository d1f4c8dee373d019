package compressor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// The attribute keeps the marker window of "<svg" clear of "<image".
const pngSignatureSvg = `<svg width="1"><image xlink:href="data:image/png;base64,iVBORw0KGgo="/></svg>`

// Here the window over "<svg><" consumes the bracket of "<image".
const adjacentImageSvg = `<svg><image xlink:href="data:image/png;base64,iVBORw0KGgo="/></svg>`

// stdJpeg recompresses with the standard library codecs only.
var stdJpeg = RecompressorFunc(func(_ context.Context, raw []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
})

func fixedCodec(out []byte) RecompressorFunc {
	return func(context.Context, []byte, int) ([]byte, error) {
		return out, nil
	}
}

func failingCodec(err error) RecompressorFunc {
	return func(context.Context, []byte, int) ([]byte, error) {
		return nil, err
	}
}

func makeJpeg(t *testing.T, w, h, quality int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), uint8((x ^ y) & 0xff), 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func imageSvg(format string, data []byte) []byte {
	return []byte(fmt.Sprintf(`<svg width="64" height="64"><image x="0" y="0" xlink:href="data:image/%s;base64,%s"/></svg>`,
		format, base64.StdEncoding.EncodeToString(data)))
}

func newCompressor(t *testing.T, codec Recompressor, opts Options) *Compressor {
	t.Helper()
	c, err := New(codec, opts)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func compress(t *testing.T, c *Compressor, input []byte) *Result {
	t.Helper()
	result, err := c.Compress(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestCompressWithoutImagesIsIdentity(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		`<svg xmlns="http://www.w3.org/2000/svg"><path d="M0 0L10 10"/></svg>`,
		"<<<>>> <img src=x> <imag <g>",
		"\x00\xff<\x80image",
	}
	codec := RecompressorFunc(func(context.Context, []byte, int) ([]byte, error) {
		t.Fatal("codec must not be called")
		return nil, nil
	})
	c := newCompressor(t, codec, DefaultOptions())
	for _, in := range inputs {
		result := compress(t, c, []byte(in))
		if diff := cmp.Diff(in, string(result.Output)); diff != "" {
			t.Errorf("output mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestCompressPngDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.OptimisePngs = false
	c := newCompressor(t, failingCodec(errors.New("must not be called")), opts)

	result := compress(t, c, []byte(pngSignatureSvg))
	if string(result.Output) != pngSignatureSvg {
		t.Errorf("expected unchanged output, got %q", result.Output)
	}
	if result.Stats.Skipped != 1 {
		t.Errorf("expected 1 skipped tag, got %d", result.Stats.Skipped)
	}
}

func TestCompressAdjacentImageIsLiteral(t *testing.T) {
	codec := RecompressorFunc(func(context.Context, []byte, int) ([]byte, error) {
		t.Fatal("codec must not be called")
		return nil, nil
	})
	for _, optimise := range []bool{false, true} {
		opts := DefaultOptions()
		opts.OptimisePngs = optimise
		result := compress(t, newCompressor(t, codec, opts), []byte(adjacentImageSvg))
		if string(result.Output) != adjacentImageSvg {
			t.Errorf("optimise %t: expected unchanged output, got %q", optimise, result.Output)
		}
		want := Stats{BytesIn: len(adjacentImageSvg), BytesOut: len(adjacentImageSvg)}
		if diff := cmp.Diff(want, result.Stats); diff != "" {
			t.Errorf("optimise %t: stats mismatch (-want +got):\n%s", optimise, diff)
		}
	}
}

func TestCompressKeepsOriginalWhenNotSmaller(t *testing.T) {
	raw, _ := base64.StdEncoding.DecodeString("iVBORw0KGgo=")
	tests := []struct {
		name string
		jpg  []byte
	}{
		{name: "larger", jpg: bytes.Repeat([]byte{0xff}, 100)},
		// same payload length means same tag length, ties keep the original
		{name: "equal", jpg: raw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompressor(t, fixedCodec(tt.jpg), DefaultOptions())
			result := compress(t, c, []byte(pngSignatureSvg))
			if string(result.Output) != pngSignatureSvg {
				t.Errorf("expected unchanged output, got %q", result.Output)
			}
			if result.Stats.Kept != 1 {
				t.Errorf("expected 1 kept tag, got %d", result.Stats.Kept)
			}
		})
	}
}

func TestCompressReplacesJpeg(t *testing.T) {
	original := makeJpeg(t, 64, 64, 100)
	input := imageSvg(FormatJpeg, original)

	opts := DefaultOptions()
	opts.Quality = 50
	result := compress(t, newCompressor(t, stdJpeg, opts), input)

	if len(result.Output) >= len(input) {
		t.Fatalf("expected output smaller than %d, got %d", len(input), len(result.Output))
	}
	if result.Stats.Replaced != 1 {
		t.Errorf("expected 1 replaced tag, got %d", result.Stats.Replaced)
	}

	segs := Segments(result.Output)
	var tag Tag
	var found bool
	for _, seg := range segs {
		if seg.Kind == Candidate {
			tag, found = MatchTag(result.Output[seg.Start:seg.End])
		}
	}
	if !found {
		t.Fatal("no image tag in output")
	}
	if tag.Format != FormatJpg {
		t.Errorf("expected format %q, got %q", FormatJpg, tag.Format)
	}
	payload, err := base64.StdEncoding.DecodeString(string(tag.Payload))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(payload, original) {
		t.Error("payload was not recompressed")
	}
	if _, err := jpeg.Decode(bytes.NewReader(payload)); err != nil {
		t.Errorf("new payload is not a valid jpeg: %v", err)
	}
	if !strings.HasPrefix(string(result.Output), `<svg width="64" height="64"><image x="0" y="0" xlink:href="data:image/jpg;base64,`) {
		t.Errorf("unexpected document head %q", result.Output[:80])
	}
	if !strings.HasSuffix(string(result.Output), `"/></svg>`) {
		t.Errorf("unexpected document tail")
	}
}

func TestCompressTagWithoutReference(t *testing.T) {
	input := "hello <image bogus> world"
	c := newCompressor(t, failingCodec(errors.New("must not be called")), DefaultOptions())
	result := compress(t, c, []byte(input))
	if string(result.Output) != input {
		t.Errorf("expected %q, got %q", input, result.Output)
	}
	want := Stats{Candidates: 1, BytesIn: len(input), BytesOut: len(input)}
	if diff := cmp.Diff(want, result.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCompressUnterminatedTag(t *testing.T) {
	input := `<svg width="1"><g>text</g>
  <image xlink:href="`
	c := newCompressor(t, failingCodec(errors.New("must not be called")), DefaultOptions())
	result := compress(t, c, []byte(input))
	if string(result.Output) != input {
		t.Errorf("expected %q, got %q", input, result.Output)
	}
	if result.Stats.Unterminated != 1 {
		t.Errorf("expected 1 unterminated tag, got %d", result.Stats.Unterminated)
	}
}

func TestCompressFailurePolicy(t *testing.T) {
	codecErr := errors.New("corrupt image")
	badBase64 := `<svg width="1"><image xlink:href="data:image/png;base64,AAAAA"/></svg>`

	tests := []struct {
		name    string
		input   string
		codec   Recompressor
		wantErr error
	}{
		{name: "codec error", input: pngSignatureSvg, codec: failingCodec(codecErr), wantErr: ErrCodec},
		{name: "real decoder rejects signature", input: pngSignatureSvg, codec: stdJpeg, wantErr: ErrCodec},
		{name: "bad base64", input: badBase64, codec: fixedCodec(nil), wantErr: ErrBase64Decode},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/pass-through", func(t *testing.T) {
			result := compress(t, newCompressor(t, tt.codec, DefaultOptions()), []byte(tt.input))
			if string(result.Output) != tt.input {
				t.Errorf("expected original bytes, got %q", result.Output)
			}
			if result.Stats.Failed != 1 {
				t.Errorf("expected 1 failed tag, got %d", result.Stats.Failed)
			}
		})
		t.Run(tt.name+"/abort", func(t *testing.T) {
			opts := DefaultOptions()
			opts.OnError = Abort
			result, err := newCompressor(t, tt.codec, opts).Compress(context.Background(), []byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if result != nil {
				t.Error("expected no result on abort")
			}
		})
	}
}

func TestCompressParallelMatchesSequential(t *testing.T) {
	var doc bytes.Buffer
	doc.WriteString("<svg>")
	for i := 0; i < 12; i++ {
		switch i % 4 {
		case 0:
			doc.Write(imageSvg(FormatJpeg, makeJpeg(t, 32+i, 32+i, 100)))
		case 1:
			doc.WriteString(`<image bogus/>`)
		case 2:
			doc.WriteString(pngSignatureSvg)
		default:
			doc.WriteString(`<path d="M0 0"/>`)
		}
	}
	doc.WriteString("</svg><image")
	input := doc.Bytes()

	seqOpts := DefaultOptions()
	seqOpts.Quality = 40
	sequential := compress(t, newCompressor(t, stdJpeg, seqOpts), input)

	parOpts := seqOpts
	parOpts.Workers = 4
	parallel := compress(t, newCompressor(t, stdJpeg, parOpts), input)

	if !bytes.Equal(sequential.Output, parallel.Output) {
		t.Error("parallel output differs from sequential output")
	}
	if diff := cmp.Diff(sequential.Stats, parallel.Stats); diff != "" {
		t.Errorf("stats mismatch (-sequential +parallel):\n%s", diff)
	}
	if parallel.Stats.Replaced != 3 {
		t.Errorf("expected 3 replaced tags, got %d", parallel.Stats.Replaced)
	}
}

func TestCompressParallelAbort(t *testing.T) {
	var calls atomic.Int32
	codec := RecompressorFunc(func(ctx context.Context, raw []byte, quality int) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("corrupt image")
	})
	opts := DefaultOptions()
	opts.Workers = 3
	opts.OnError = Abort
	input := []byte(strings.Repeat(pngSignatureSvg, 20))

	_, err := newCompressor(t, codec, opts).Compress(context.Background(), input)
	if !errors.Is(err, ErrCodec) {
		t.Errorf("expected %v, got %v", ErrCodec, err)
	}
}

func TestCompressCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inputs := []string{pngSignatureSvg, "", "<svg/>"}
	for _, workers := range []int{1, 4} {
		opts := DefaultOptions()
		opts.Workers = workers
		c := newCompressor(t, fixedCodec([]byte{1}), opts)
		for _, in := range inputs {
			result, err := c.Compress(ctx, []byte(in))
			if !errors.Is(err, context.Canceled) {
				t.Errorf("workers %d, input %q: expected %v, got %v", workers, in, context.Canceled, err)
			}
			if result != nil {
				t.Errorf("workers %d, input %q: expected no result", workers, in)
			}
		}
	}
}

func TestSubstitutionNeverGrowsTags(t *testing.T) {
	sizes := []int{0, 1, 3, 8, 9, 10, 11, 64}
	for _, n := range sizes {
		c := newCompressor(t, fixedCodec(bytes.Repeat([]byte{7}, n)), DefaultOptions())
		result := compress(t, c, []byte(pngSignatureSvg))
		if len(result.Output) > len(pngSignatureSvg) {
			t.Errorf("codec output %d bytes: document grew to %d", n, len(result.Output))
		}
	}
}

func TestBase64RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0},
		{0xff, 0xfe},
		[]byte("any carnal pleas"),
		makeJpeg(t, 8, 8, 90),
	}
	for _, in := range inputs {
		out, err := base64.StdEncoding.DecodeString(base64.StdEncoding.EncodeToString(in))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("round trip of %d bytes failed", len(in))
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "quality zero", mutate: func(o *Options) { o.Quality = 0 }, wantErr: ErrInvalidQuality},
		{name: "quality too high", mutate: func(o *Options) { o.Quality = 101 }, wantErr: ErrInvalidQuality},
		{name: "negative workers", mutate: func(o *Options) { o.Workers = -1 }, wantErr: ErrInvalidWorkers},
		{name: "unknown policy", mutate: func(o *Options) { o.OnError = Policy(9) }, wantErr: ErrInvalidPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewRejectsNilCodec(t *testing.T) {
	if _, err := New(nil, DefaultOptions()); !errors.Is(err, ErrNilCodec) {
		t.Errorf("expected %v, got %v", ErrNilCodec, err)
	}
}

func TestOutputAppendsInOrder(t *testing.T) {
	out := NewOutput(0)
	out.Write([]byte("ab"))
	out.Write([]byte("c"))
	out.Write(nil)
	out.Write([]byte("de"))
	if got := string(out.Bytes()); got != "abcde" {
		t.Errorf("expected %q, got %q", "abcde", got)
	}
	if out.Len() != 5 {
		t.Errorf("expected length 5, got %d", out.Len())
	}
}

func TestOutcomeNeverLeaksIntoLiterals(t *testing.T) {
	// text that only looks like a data uri outside an image element
	input := `<text>data:image/png;base64,iVBORw0KGgo=</text>`
	c := newCompressor(t, fixedCodec([]byte{1}), DefaultOptions())
	result := compress(t, c, []byte(input))
	if string(result.Output) != input {
		t.Errorf("expected %q, got %q", input, result.Output)
	}
	if bytes.Contains(result.Output, []byte("jpg")) {
		t.Error("literal text was rewritten")
	}
}
