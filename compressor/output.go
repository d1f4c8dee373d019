package compressor

import "bytes"

// Output is the append-only sink every emitted byte goes through.
// Writes land in call order and are never read back while a scan runs.
type Output struct {
	buf bytes.Buffer
}

func NewOutput(sizeHint int) *Output {
	o := &Output{}
	o.buf.Grow(sizeHint)
	return o
}

func (o *Output) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

func (o *Output) Len() int {
	return o.buf.Len()
}

// Bytes returns the processed document.
func (o *Output) Bytes() []byte {
	return o.buf.Bytes()
}
