package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/models"
)

const SchemeCAS = "cas"

// CASClient is a Store backed by a remote content-addressed storage service.
type CASClient struct {
	baseURL    string
	apiToken   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logrus.Entry
	now        func() time.Time
}

func NewCASClient(baseURL, apiToken string, timeout time.Duration) *CASClient {
	return &CASClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logrus.WithField("component", "cas"),
		now:        time.Now,
	}
}

type blobResponse struct {
	CID        string `json:"cid"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
	Commitment string `json:"commitment"`
}

func (c *CASClient) Scheme() string { return SchemeCAS }

func (c *CASClient) Put(ctx context.Context, in PutInput) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/blobs", bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("cas put: build request: %w", err)
	}
	contentType := in.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Filename", in.Filename)
	req.ContentLength = int64(len(in.Data))
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Content store upload failed")
		return nil, unavailable("put", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WithField("status", resp.StatusCode).Warn("Content store rejected upload")
		return nil, unavailable("put", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var blob blobResponse
	if err := json.NewDecoder(resp.Body).Decode(&blob); err != nil {
		return nil, unavailable("put", fmt.Errorf("decode response: %w", err))
	}
	if blob.CID == "" {
		return nil, unavailable("put", fmt.Errorf("empty content id"))
	}

	return &Object{
		ContentID: blob.CID,
		Locator:   Locator(SchemeCAS, blob.CID),
		Proof: models.StorageProof{
			Backend:    SchemeCAS,
			ContentID:  blob.CID,
			Digest:     blob.Digest,
			Size:       blob.Size,
			Commitment: blob.Commitment,
			StoredAt:   c.now().UTC(),
		},
	}, nil
}

func (c *CASClient) GetRange(ctx context.Context, contentID string, offset, length int64) (io.ReadCloser, int64, error) {
	ctx, cancel, stop := headerDeadline(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/blobs/"+url.PathEscape(contentID), nil)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("cas get: build request: %w", err)
	}
	c.authorize(req)

	rc, size, err := getRange(c.httpClient, req, offset, length)
	stop()
	if err != nil {
		cancel()
		return nil, 0, err
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, size, nil
}

func (c *CASClient) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable("health", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return unavailable("health", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (c *CASClient) authorize(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}
