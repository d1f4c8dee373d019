package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

const (
	DefaultMagickPath    = "magick"
	DefaultMagickTimeout = 20 * time.Second
)

var ErrConvertError = errors.New("cannot convert image")

func generateError(err error) error {
	return fmt.Errorf("convert: %w", fmt.Errorf("%w: %v", ErrConvertError, err))
}

/*
Magick pipes the image through an ImageMagick binary: raw bytes on stdin,
jpeg on stdout. The process is killed once Timeout passes.
*/
type Magick struct {
	Path    string
	Timeout time.Duration

	// Images wider or taller than this are downscaled to fit, 0 disables
	MaxDimension int
	Background   string
}

func NewMagick(path string, maxDimension int) *Magick {
	if path == "" {
		path = DefaultMagickPath
	}
	return &Magick{
		Path:         path,
		Timeout:      DefaultMagickTimeout,
		MaxDimension: maxDimension,
		Background:   "white",
	}
}

func (m *Magick) args(quality int) []string {
	args := []string{
		"-", // take stdin, format sniffed from the data
		"-auto-orient",
		"-strip", // drop profiles and comments
		"-background", m.Background,
		"-alpha", "remove", // jpeg has no alpha
	}
	if m.MaxDimension > 0 {
		dim := strconv.Itoa(m.MaxDimension)
		args = append(args, "-resize", dim+"x"+dim+">") // only ever shrink
	}
	return append(args,
		"-quality", strconv.Itoa(quality),
		"jpeg:-", // jpeg to stdout
	)
}

func (m *Magick) Recompress(ctx context.Context, raw []byte, quality int) ([]byte, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultMagickTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.Path, m.args(quality)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, generateError(ctxErr)
		}
		if stderr.Len() > 0 {
			return nil, generateError(fmt.Errorf("%v: %s", err, bytes.TrimSpace(stderr.Bytes())))
		}
		return nil, generateError(err)
	}
	if stdout.Len() == 0 {
		return nil, generateError(errors.New("empty output"))
	}
	return stdout.Bytes(), nil
}
