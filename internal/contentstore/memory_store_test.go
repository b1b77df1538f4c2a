package contentstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	data := []byte("frame data")

	obj, err := store.Put(ctx, PutInput{Data: data, Filename: "clip.mp4", MimeType: "video/mp4"})
	require.NoError(t, err)

	assert.Equal(t, "mem://"+obj.ContentID, obj.Locator)
	assert.Equal(t, Digest(data), obj.Proof.Digest)
	assert.Equal(t, int64(len(data)), obj.Proof.Size)
	assert.Len(t, obj.Proof.Commitment, 64)

	assert.Equal(t, "frame data", readSpan(t, store, obj.ContentID, 0, -1))
	assert.Equal(t, "data", readSpan(t, store, obj.ContentID, 6, -1))
	assert.Equal(t, "fra", readSpan(t, store, obj.ContentID, 0, 3))
	assert.Equal(t, "data", readSpan(t, store, obj.ContentID, 6, 100))

	for _, span := range [][2]int64{{-1, 4}, {10, -1}, {0, 0}} {
		_, _, err := store.GetRange(ctx, obj.ContentID, span[0], span[1])
		assert.ErrorIs(t, err, ErrRange, span)
	}
}

func TestMemoryStoreIsContentAddressed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Put(ctx, PutInput{Data: []byte("same")})
	require.NoError(t, err)
	second, err := store.Put(ctx, PutInput{Data: []byte("same")})
	require.NoError(t, err)

	assert.Equal(t, first.ContentID, second.ContentID)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreNotFound(t *testing.T) {
	_, _, err := NewMemoryStore().GetRange(context.Background(), "missing", 0, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Put(ctx, PutInput{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseLocator(t *testing.T) {
	scheme, rest, err := ParseLocator("S3://bucket/videos/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "s3", scheme)
	assert.Equal(t, "bucket/videos/a.mp4", rest)

	for _, bad := range []string{"", "nocolon", "://x", "cas://"} {
		_, _, err := ParseLocator(bad)
		assert.ErrorIs(t, err, ErrBadLocator, bad)
	}
}

func TestInspect(t *testing.T) {
	data := bytes.Repeat([]byte("ab"), sniffLen)

	summary, err := Inspect(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Digest(data), summary.Digest)
	assert.Equal(t, int64(len(data)), summary.Size)
	assert.Len(t, summary.Head, sniffLen)

	summary, err = Inspect(bytes.NewReader([]byte("tiny")))
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte("tiny")), summary.Digest)
	assert.Equal(t, int64(4), summary.Size)
	assert.Equal(t, []byte("tiny"), summary.Head)
}

func TestParseContentRange(t *testing.T) {
	start, size, ok := parseContentRange("bytes 100-199/1000")
	require.True(t, ok)
	assert.Equal(t, int64(100), start)
	assert.Equal(t, int64(1000), size)

	for _, bad := range []string{"", "bytes */1000", "items 0-1/2", "bytes 0-1"} {
		_, _, ok := parseContentRange(bad)
		assert.False(t, ok, bad)
	}

	assert.Equal(t, "", rangeHeader(0, -1))
	assert.Equal(t, "bytes=5-", rangeHeader(5, -1))
	assert.Equal(t, "bytes=0-9", rangeHeader(0, 10))
}
