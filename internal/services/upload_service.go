// internal/services/upload_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

// UploadService commits asset bytes to the content store and points the
// asset at them. The asset is written only after the store accepted the
// bytes, and then in a single write.
type UploadService struct {
	gateway  store.Gateway
	content  *contentstore.Router
	notifier *NotificationService
	options  UploadOptions
	now      func() time.Time
}

type RegisterUploadInput struct {
	AssetID  uuid.UUID
	OwnerID  uuid.UUID
	Data     []byte
	Filename string
	MimeType string
}

type Registration struct {
	ContentID    string              `json:"content_id"`
	Locator      string              `json:"locator"`
	StorageProof models.StorageProof `json:"storage_proof"`
}

func NewUploadService(gateway store.Gateway, content *contentstore.Router, notifier *NotificationService, cfg *config.Config) *UploadService {
	return &UploadService{
		gateway:  gateway,
		content:  content,
		notifier: notifier,
		options:  VideoUploadOptions(cfg.Streaming.UploadMaxBytes),
		now:      time.Now,
	}
}

// authorize loads the asset and checks that ownerID created it.
func (s *UploadService) authorize(ctx context.Context, assetID, ownerID uuid.UUID) (*models.Asset, error) {
	asset, err := s.gateway.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load asset", err)
	}
	if ownerID == uuid.Nil || asset.CreatorID != ownerID {
		return nil, apperrors.New(apperrors.KindForbidden, "only the creator can upload content for this asset")
	}
	return asset, nil
}

func (s *UploadService) RegisterUpload(ctx context.Context, in RegisterUploadInput) (*Registration, error) {
	mimeType, err := s.options.Validate(in.Data, in.Filename, in.MimeType)
	if err != nil {
		return nil, err
	}

	asset, err := s.authorize(ctx, in.AssetID, in.OwnerID)
	if err != nil {
		return nil, err
	}

	primary := s.content.Primary()
	obj, err := primary.Put(ctx, contentstore.PutInput{
		Data:     in.Data,
		Filename: in.Filename,
		MimeType: mimeType,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"asset_id": asset.ID,
			"backend":  primary.Scheme(),
			"size":     len(in.Data),
		}).WithError(err).Warn("Content store rejected upload")
		return nil, apperrors.Wrap(apperrors.KindStorageUploadFailed, "content store upload failed, asset unchanged", err)
	}

	if obj.Proof.Digest != contentstore.Digest(in.Data) || obj.Proof.Size != int64(len(in.Data)) {
		logrus.WithFields(logrus.Fields{
			"asset_id":   asset.ID,
			"content_id": obj.ContentID,
			"digest":     obj.Proof.Digest,
			"size":       obj.Proof.Size,
		}).Error("Content store proof does not match uploaded bytes")
		return nil, apperrors.New(apperrors.KindStorageUploadFailed, "content store returned a proof that does not match the uploaded bytes")
	}

	return s.register(ctx, asset, obj)
}

// RegisterReference points an asset at content that is already stored,
// either as a full locator or as a content id on the primary store. The
// bytes are read once to build the proof and must look like video.
func (s *UploadService) RegisterReference(ctx context.Context, assetID, ownerID uuid.UUID, reference string) (*Registration, error) {
	if reference == "" {
		return nil, apperrors.New(apperrors.KindValidation, "content_id is required")
	}

	asset, err := s.authorize(ctx, assetID, ownerID)
	if err != nil {
		return nil, err
	}

	locator := reference
	if _, _, err := contentstore.ParseLocator(reference); err != nil {
		locator = contentstore.Locator(s.content.Primary().Scheme(), reference)
	}
	scheme, contentID, err := contentstore.ParseLocator(locator)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid content reference", err)
	}

	body, size, err := s.content.Open(ctx, locator, 0, -1)
	if err != nil {
		switch {
		case errors.Is(err, contentstore.ErrNotFound):
			return nil, apperrors.New(apperrors.KindValidation, "referenced content does not exist").
				WithDetail("content_id", reference)
		case errors.Is(err, contentstore.ErrBadLocator):
			return nil, apperrors.Wrap(apperrors.KindValidation, "unsupported content reference", err)
		}
		logrus.WithField("locator", locator).WithError(err).Warn("Failed to read referenced content")
		return nil, apperrors.Wrap(apperrors.KindStorageUploadFailed, "content store unavailable, asset unchanged", err)
	}
	defer body.Close()

	if limit := s.options.MaxSize; limit > 0 && size > limit {
		return nil, apperrors.Newf(apperrors.KindValidation, "file size %d bytes exceeds maximum allowed size %d bytes", size, limit).
			WithDetail("max_bytes", limit)
	}
	summary, err := contentstore.Inspect(body)
	if err != nil {
		logrus.WithField("locator", locator).WithError(err).Warn("Failed to read referenced content")
		return nil, apperrors.Wrap(apperrors.KindStorageUploadFailed, "content store unavailable, asset unchanged", err)
	}
	if summary.Size == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "file is empty")
	}
	if _, err := SniffVideo(summary.Head); err != nil {
		return nil, err
	}

	obj := &contentstore.Object{
		ContentID: contentID,
		Locator:   locator,
		Proof: models.StorageProof{
			Backend:   scheme,
			ContentID: contentID,
			Digest:    summary.Digest,
			Size:      summary.Size,
			StoredAt:  s.now().UTC(),
		},
	}
	return s.register(ctx, asset, obj)
}

func (s *UploadService) register(ctx context.Context, asset *models.Asset, obj *contentstore.Object) (*Registration, error) {
	// The bytes are committed; a client disconnect must not abandon the write.
	writeCtx := context.WithoutCancel(ctx)

	proof := obj.Proof
	if err := s.gateway.SetAssetContent(writeCtx, asset.ID, obj.Locator, &proof); err != nil {
		logrus.WithFields(logrus.Fields{
			"asset_id":   asset.ID,
			"content_id": obj.ContentID,
			"locator":    obj.Locator,
			"digest":     obj.Proof.Digest,
		}).WithError(err).Error("Orphaned content: stored but not registered")

		if s.notifier != nil {
			go func() {
				if alertErr := s.notifier.SendOrphanedUploadAlert(asset.ID, obj, err); alertErr != nil {
					logrus.WithError(alertErr).Warn("Failed to send orphaned upload alert")
				}
			}()
		}

		return nil, apperrors.Wrap(apperrors.KindRegistrationFailed, "content was stored but the asset could not be updated", err).
			WithDetail("requires_reconciliation", true).
			WithDetail("content_id", obj.ContentID).
			WithDetail("locator", obj.Locator)
	}

	logrus.WithFields(logrus.Fields{
		"asset_id":   asset.ID,
		"content_id": obj.ContentID,
		"locator":    obj.Locator,
		"size":       obj.Proof.Size,
	}).Info("Asset content registered")

	return &Registration{
		ContentID:    obj.ContentID,
		Locator:      obj.Locator,
		StorageProof: proof,
	}, nil
}
