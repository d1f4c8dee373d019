package compressor

import "errors"

var (
	ErrBase64Decode   = errors.New("cannot decode base64 payload")
	ErrCodec          = errors.New("cannot recompress image")
	ErrInvalidQuality = errors.New("quality out of range")
	ErrInvalidWorkers = errors.New("negative worker count")
	ErrInvalidPolicy  = errors.New("unknown error policy")
	ErrNilCodec       = errors.New("nil recompressor")
)
