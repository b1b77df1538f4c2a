// internal/services/range.go
package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errRangeNotSatisfiable = errors.New("range not satisfiable")

// byteRange is an inclusive span of a body.
type byteRange struct {
	start, end int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

func (r byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}

// parseRange reads a single "bytes=" range against a body of size bytes.
// It returns nil when the header is absent or malformed, in which case the
// whole body is served. Only the first range of a multi-range request is
// honoured. Ends past the body are clamped.
func parseRange(header string, size int64) (*byteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, nil
	}

	requested := header[len(prefix):]
	if i := strings.IndexByte(requested, ','); i >= 0 {
		requested = requested[:i]
	}
	requested = strings.TrimSpace(requested)

	dash := strings.IndexByte(requested, '-')
	if dash < 0 {
		return nil, nil
	}
	startStr, endStr := strings.TrimSpace(requested[:dash]), strings.TrimSpace(requested[dash+1:])

	if startStr == "" {
		// Suffix range: the last n bytes.
		n, ok := parseOffset(endStr)
		if !ok {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, errRangeNotSatisfiable
		}
		if n > size {
			n = size
		}
		return &byteRange{start: size - n, end: size - 1}, nil
	}

	start, ok := parseOffset(startStr)
	if !ok {
		return nil, nil
	}

	end := size - 1
	if endStr != "" {
		e, ok := parseOffset(endStr)
		if !ok || e < start {
			return nil, nil
		}
		if e < end {
			end = e
		}
	}

	if start >= size {
		return nil, errRangeNotSatisfiable
	}
	return &byteRange{start: start, end: end}, nil
}

func parseOffset(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
