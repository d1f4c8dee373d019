package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aperture147/svgc/util"
)

type contextKey string

// Check the size of a request then check the size of a defined field of that request
// and finally put the selected field to the request context
type FileExtractor struct {
	AllowedSize int64  // data size in byte
	Field       string // the field which needs to be checked
}

func NewFileExtractor(size int, field string) FileExtractor {
	return FileExtractor{int64(size) * 1024 * 1024, field}
}

var (
	ErrTooLarge    = errors.New("too large")
	ErrMissingFile = errors.New("missing file")
)

// This function will try to verify the whole package size
func (fe FileExtractor) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, fe.AllowedSize)
		if err := r.ParseMultipartForm(fe.AllowedSize); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
				util.WriteTooLargeResponse(w, fmt.Errorf("request: %w", ErrTooLarge))
				return
			}
			util.WriteBadRequestResponse(w, err)
			return
		}

		file, _, err := r.FormFile(fe.Field)
		if err != nil {
			util.WriteBadRequestResponse(w, fmt.Errorf("%s: %w", fe.Field, ErrMissingFile))
			return
		}
		defer file.Close()

		buffer, err := io.ReadAll(file)
		if err != nil {
			util.WriteBadRequestResponse(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey(fe.Field), buffer)))
	})
}

// File returns the bytes Verify stored for field.
func File(r *http.Request, field string) []byte {
	buffer, _ := r.Context().Value(contextKey(field)).([]byte)
	return buffer
}
