// Package contentstore commits video bytes to a storage backend and reads
// them back. Every backend returns a storage proof so callers can check that
// what they read is what was written.
package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/javajoker/vidmarket-backend/internal/models"
)

var (
	ErrNotFound    = errors.New("contentstore: content not found")
	ErrUnavailable = errors.New("contentstore: unavailable")
	ErrBadLocator  = errors.New("contentstore: malformed locator")
	ErrRange       = errors.New("contentstore: range outside content")
)

type PutInput struct {
	Data     []byte
	Filename string
	MimeType string
}

// Object is the result of a successful Put.
type Object struct {
	ContentID string              `json:"content_id"`
	Locator   string              `json:"locator"`
	Proof     models.StorageProof `json:"storage_proof"`
}

type Store interface {
	Put(ctx context.Context, in PutInput) (*Object, error)
	// GetRange opens the content stored under contentID, which is the part
	// of a locator after "<scheme>://", at offset and reads length bytes, or
	// to the end when length is negative. It also returns the size of the
	// whole object. The caller closes the body.
	GetRange(ctx context.Context, contentID string, offset, length int64) (io.ReadCloser, int64, error)
	IsReady(ctx context.Context) error
	Scheme() string
}

// Digest returns the "sha256:<hex>" digest used in storage proofs.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// sniffLen is how much leading content type detection looks at.
const sniffLen = 3072

// Summary describes content read once from start to end.
type Summary struct {
	Digest string
	Size   int64
	Head   []byte
}

// Inspect hashes r to the end and keeps its first bytes for sniffing.
func Inspect(r io.Reader) (*Summary, error) {
	hasher := sha256.New()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	head = head[:n]
	hasher.Write(head)

	rest, err := io.Copy(hasher, r)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Digest: "sha256:" + hex.EncodeToString(hasher.Sum(nil)),
		Size:   int64(n) + rest,
		Head:   head,
	}, nil
}

// checkRange validates a requested span against an object of size bytes.
func checkRange(offset, length, size int64) error {
	if offset < 0 || length == 0 || (offset > 0 && offset >= size) {
		return fmt.Errorf("%w: offset %d length %d of %d", ErrRange, offset, length, size)
	}
	return nil
}

// rangeHeader is the HTTP Range value for a span, or "" for the whole body.
func rangeHeader(offset, length int64) string {
	switch {
	case length > 0:
		return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	case offset > 0:
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return ""
}

// parseContentRange reads "bytes <start>-<end>/<size>".
func parseContentRange(value string) (start, size int64, ok bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, 0, false
	}
	span, total, found := strings.Cut(value[len("bytes "):], "/")
	if !found {
		return 0, 0, false
	}
	first, _, found := strings.Cut(span, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	size, err = strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, size, true
}

// body pairs a reader with the closer that releases it.
type body struct {
	io.Reader
	io.Closer
}

// limitBody caps rc at length bytes unless length is negative.
func limitBody(rc io.ReadCloser, length int64) io.ReadCloser {
	if length < 0 {
		return rc
	}
	return body{Reader: io.LimitReader(rc, length), Closer: rc}
}

// cancelOnClose releases a request context once its body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// headerDeadline cancels the returned context when the backend has not
// answered within d. Calling stop disarms the deadline, so reading a long
// body is bound only by the parent context.
func headerDeadline(parent context.Context, d time.Duration) (ctx context.Context, cancel context.CancelFunc, stop func() bool) {
	ctx, cancel = context.WithCancel(parent)
	timer := time.AfterFunc(d, cancel)
	return ctx, cancel, timer.Stop
}

// Locator builds "<scheme>://<contentID>".
func Locator(scheme, contentID string) string {
	return scheme + "://" + contentID
}

// ParseLocator splits a locator into its scheme and the remainder.
func ParseLocator(locator string) (scheme, rest string, err error) {
	idx := strings.Index(locator, "://")
	if idx <= 0 || idx+3 >= len(locator) {
		return "", "", fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	return strings.ToLower(locator[:idx]), locator[idx+3:], nil
}

// unavailable wraps a backend failure so it matches ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
