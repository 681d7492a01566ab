package core

// streaming.go prepares a CSV source for the csv.Reader without loading it
// into memory:
//
//   - A leading byte order mark is removed. UTF-16 files with a BOM are
//     decoded to UTF-8.
//   - Invalid UTF-8 sequences are replaced with U+FFFD.
//   - Reading past the size limit fails with ErrFileTooLarge.

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxFileSize is the per-file limit used when none is configured.
const DefaultMaxFileSize int64 = 100 << 20

// ErrFileTooLarge is returned when a source exceeds its size limit.
var ErrFileTooLarge = errors.New("file too large")

// sizeLimitedReader fails once more than limit bytes have been read.
type sizeLimitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *sizeLimitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, l.limit)
	}
	return n, err
}

// WrapForStreaming wraps r with the size limit, BOM handling and UTF-8
// repair. The limit applies to raw bytes, before decoding.
func WrapForStreaming(r io.Reader, maxSize int64) io.Reader {
	if maxSize > 0 {
		r = &sizeLimitedReader{r: r, limit: maxSize}
	}
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
