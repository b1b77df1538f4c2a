package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/javajoker/vidmarket-backend/internal/models"
)

const SchemeMemory = "mem"

// MemoryStore is an in-process content-addressed store. Content ids are the
// base58 encoded SHA-256 of the bytes, so identical uploads collapse onto the
// same id.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		now:   time.Now,
	}
}

func (m *MemoryStore) Scheme() string { return SchemeMemory }

func (m *MemoryStore) Put(ctx context.Context, in PutInput) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("put", err)
	}

	sum := sha256.Sum256(in.Data)
	cid := base58.Encode(sum[:])
	commitment := sha3.Sum256(in.Data)

	data := make([]byte, len(in.Data))
	copy(data, in.Data)

	m.mu.Lock()
	m.blobs[cid] = data
	m.mu.Unlock()

	return &Object{
		ContentID: cid,
		Locator:   Locator(SchemeMemory, cid),
		Proof: models.StorageProof{
			Backend:    SchemeMemory,
			ContentID:  cid,
			Digest:     "sha256:" + hex.EncodeToString(sum[:]),
			Size:       int64(len(in.Data)),
			Commitment: hex.EncodeToString(commitment[:]),
			StoredAt:   m.now().UTC(),
		},
	}, nil
}

func (m *MemoryStore) GetRange(ctx context.Context, contentID string, offset, length int64) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable("get", err)
	}

	m.mu.RLock()
	data, ok := m.blobs[contentID]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, ErrNotFound
	}

	size := int64(len(data))
	if err := checkRange(offset, length, size); err != nil {
		return nil, 0, err
	}
	end := size
	if length > 0 && offset+length < size {
		end = offset + length
	}
	// Stored blobs are never modified after Put.
	return io.NopCloser(bytes.NewReader(data[offset:end])), size, nil
}

func (m *MemoryStore) IsReady(ctx context.Context) error {
	return ctx.Err()
}

// Len reports how many distinct blobs are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
