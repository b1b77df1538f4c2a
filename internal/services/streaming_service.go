// internal/services/streaming_service.go
package services

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

// StreamingService decides per request whether to serve an asset's bytes
// and serves them with single range support. Content is checked against its
// storage proof once per view window; requests in between read only the
// span they asked for.
type StreamingService struct {
	gateway   store.Gateway
	purchases *PurchaseService
	content   *contentstore.Router
	views     *cache.Cache
	verified  *cache.Cache
}

type verifiedContent struct {
	size        int64
	contentType string
}

type ServeInput struct {
	AssetID     uuid.UUID
	RequesterID string
	ClientIP    string
	RangeHeader string
}

type Stream struct {
	Status        int
	ContentType   string
	ContentLength int64
	ContentRange  string
	TotalLength   int64
	// Body is the requested span. The caller closes it.
	Body io.ReadCloser
}

func NewStreamingService(gateway store.Gateway, purchases *PurchaseService, content *contentstore.Router, cfg *config.Config) *StreamingService {
	window := cfg.Streaming.ViewWindow()
	return &StreamingService{
		gateway:   gateway,
		purchases: purchases,
		content:   content,
		views:     cache.New(window, 2*window),
		verified:  cache.New(window, 2*window),
	}
}

func (s *StreamingService) Serve(ctx context.Context, in ServeInput) (*Stream, error) {
	asset, err := s.gateway.GetAsset(ctx, in.AssetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load asset", err)
	}

	allowed, err := s.purchases.CanAccess(ctx, asset, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.New(apperrors.KindAccessDenied, "purchase required to watch this video").
			WithDetail("anonymous", in.RequesterID == "").
			WithDetail("monetization", asset.Monetization)
	}

	logger := logrus.WithFields(logrus.Fields{
		"asset_id": asset.ID,
		"locator":  asset.ContentLocator,
	})

	if asset.ContentLocator == "" {
		return nil, apperrors.New(apperrors.KindContentUnavailable, "video content has not been uploaded yet")
	}

	content, err := s.verify(ctx, asset, logger)
	if err != nil {
		return nil, err
	}

	size := content.size
	r, err := parseRange(in.RangeHeader, size)
	if err != nil {
		return nil, apperrors.New(apperrors.KindRangeNotSatisfiable, "requested range is outside the video").
			WithDetail("total_length", size)
	}

	offset, length := int64(0), int64(-1)
	if r != nil {
		offset, length = r.start, r.length()
	}
	body, total, err := s.content.Open(ctx, asset.ContentLocator, offset, length)
	if err != nil {
		logger.WithError(err).Warn("Failed to open asset content")
		return nil, apperrors.Wrap(apperrors.KindContentUnavailable, "video content is temporarily unavailable", err)
	}
	if total != size {
		body.Close()
		s.verified.Delete(s.verifiedKey(asset))
		logger.WithFields(logrus.Fields{"verified_size": size, "size": total}).Error("Content changed since it was verified")
		return nil, apperrors.New(apperrors.KindContentUnavailable, "video content failed integrity check")
	}

	stream := &Stream{
		Status:        http.StatusOK,
		ContentType:   content.contentType,
		ContentLength: size,
		TotalLength:   size,
		Body:          body,
	}
	if r != nil {
		stream.Status = http.StatusPartialContent
		stream.ContentLength = r.length()
		stream.ContentRange = r.contentRange(size)
	}

	s.countView(ctx, asset.ID, in)

	return stream, nil
}

// verify reads the whole content, compares it with the storage proof and
// sniffs it. A passing result is kept for one view window.
func (s *StreamingService) verify(ctx context.Context, asset *models.Asset, logger *logrus.Entry) (*verifiedContent, error) {
	key := s.verifiedKey(asset)
	if v, ok := s.verified.Get(key); ok {
		return v.(*verifiedContent), nil
	}

	body, _, err := s.content.Open(ctx, asset.ContentLocator, 0, -1)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch asset content")
		return nil, apperrors.Wrap(apperrors.KindContentUnavailable, "video content is temporarily unavailable", err)
	}
	summary, err := contentstore.Inspect(body)
	body.Close()
	if err != nil {
		logger.WithError(err).Warn("Failed to read asset content")
		return nil, apperrors.Wrap(apperrors.KindContentUnavailable, "video content is temporarily unavailable", err)
	}

	if proof := asset.StorageProof; proof != nil && proof.Digest != "" {
		if !utils.DigestsMatch(summary.Digest, proof.Digest) || (proof.Size > 0 && proof.Size != summary.Size) {
			logger.WithFields(logrus.Fields{
				"digest": proof.Digest,
				"actual": summary.Digest,
				"size":   summary.Size,
			}).Error("Fetched content does not match storage proof")
			return nil, apperrors.New(apperrors.KindContentUnavailable, "video content failed integrity check")
		}
	}

	contentType, err := SniffVideo(summary.Head)
	if err != nil {
		logger.WithError(err).Error("Stored content is not a video")
		return nil, apperrors.New(apperrors.KindContentUnavailable, "stored content is not a playable video")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	v := &verifiedContent{size: summary.Size, contentType: contentType}
	s.verified.Set(key, v, cache.DefaultExpiration)
	return v, nil
}

func (s *StreamingService) verifiedKey(asset *models.Asset) string {
	if asset.StorageProof == nil {
		return asset.ContentLocator
	}
	return asset.ContentLocator + "|" + asset.StorageProof.Digest
}

// countView increments the counter at most once per viewer per window.
// Failures never fail the stream.
func (s *StreamingService) countView(ctx context.Context, assetID uuid.UUID, in ServeInput) {
	viewer := NormalizeBuyerID(in.RequesterID)
	if viewer == "" && in.ClientIP != "" {
		viewer = "ip:" + in.ClientIP
	}
	if viewer != "" {
		if err := s.views.Add(assetID.String()+"|"+viewer, struct{}{}, cache.DefaultExpiration); err != nil {
			return
		}
	}

	if _, err := s.gateway.IncrementAssetViews(context.WithoutCancel(ctx), assetID); err != nil {
		logrus.WithField("asset_id", assetID).WithError(err).Warn("Failed to count view")
	}
}

