package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aperture147/svgc/processor"
	"github.com/aperture147/svgc/util"
)

const (
	QualityField      = "quality"
	OptimisePngsField = "optimisePngs"
	MinifyField       = "minify"
	StrictField       = "strict"
)

var ErrBadOption = errors.New("bad option")

// OptionsParser reads the per-request compression settings from the form,
// starting from Defaults.
type OptionsParser struct {
	Defaults processor.SvgOptions
	Key      string
}

func NewOptionsParser(defaults processor.SvgOptions, key string) OptionsParser {
	return OptionsParser{Defaults: defaults, Key: key}
}

func parseBool(r *http.Request, field string, value *bool) error {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w: %q", field, ErrBadOption, raw)
	}
	*value = b
	return nil
}

func (o OptionsParser) Parse(r *http.Request) (processor.SvgOptions, error) {
	opts := o.Defaults
	if raw := r.FormValue(QualityField); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%s: %w: %q", QualityField, ErrBadOption, raw)
		}
		opts.Compressor.Quality = q
	}
	if err := parseBool(r, OptimisePngsField, &opts.Compressor.OptimisePngs); err != nil {
		return opts, err
	}
	if err := parseBool(r, MinifyField, &opts.Minify); err != nil {
		return opts, err
	}
	if err := parseBool(r, StrictField, &opts.Strict); err != nil {
		return opts, err
	}
	if err := opts.Compressor.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrBadOption, err)
	}
	return opts, nil
}

func (o OptionsParser) Decode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts, err := o.Parse(r)
		if err != nil {
			util.WriteBadRequestResponse(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey(o.Key), opts)))
	})
}

// Options returns the settings Decode stored under key, or false when
// there are none.
func Options(r *http.Request, key string) (processor.SvgOptions, bool) {
	opts, ok := r.Context().Value(contextKey(key)).(processor.SvgOptions)
	return opts, ok
}
