// internal/services/asset_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

type AssetService struct {
	gateway store.Gateway
	config  *config.Config
}

type CreateAssetRequest struct {
	Title           string              `json:"title" validate:"required,min=3,max=255"`
	Description     string              `json:"description" validate:"max=5000"`
	Category        string              `json:"category" validate:"max=100"`
	Tags            []string            `json:"tags,omitempty" validate:"max=20,dive,max=50"`
	ThumbnailURL    string              `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	DurationSeconds int                 `json:"duration_seconds" validate:"min=0"`
	Monetization    models.Monetization `json:"monetization" validate:"required,monetization"`
	Price           decimal.Decimal     `json:"price" validate:"decimal_gte0"`
}

func NewAssetService(gateway store.Gateway, config *config.Config) *AssetService {
	return &AssetService{
		gateway: gateway,
		config:  config,
	}
}

func (s *AssetService) CreateAsset(ctx context.Context, creatorID uuid.UUID, req *CreateAssetRequest) (*models.Asset, error) {
	if _, err := s.gateway.GetAccount(ctx, creatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindUnauthorized, "creator account not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	price, err := s.normalizePrice(req.Monetization, req.Price)
	if err != nil {
		return nil, err
	}

	asset := &models.Asset{
		CreatorID:       creatorID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Category:        strings.ToLower(strings.TrimSpace(req.Category)),
		Tags:            pq.StringArray(req.Tags),
		ThumbnailURL:    req.ThumbnailURL,
		DurationSeconds: req.DurationSeconds,
		Monetization:    req.Monetization,
		Price:           price,
	}

	if err := s.gateway.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	return asset, nil
}

// normalizePrice zeroes free prices and requires a positive price, within
// token precision, for pay-per-view.
func (s *AssetService) normalizePrice(mode models.Monetization, price decimal.Decimal) (decimal.Decimal, error) {
	if mode == models.MonetizationFree {
		return decimal.Zero, nil
	}
	if price.IsNegative() {
		return decimal.Zero, apperrors.New(apperrors.KindValidation, "price must not be negative").
			WithDetail("field", "price")
	}
	if mode == models.MonetizationPayPerView && !price.IsPositive() {
		return decimal.Zero, apperrors.New(apperrors.KindValidation, "pay-per-view assets need a price above zero").
			WithDetail("field", "price")
	}

	decimals := int32(s.config.Ledger.TokenDecimals)
	if !price.Equal(price.Truncate(decimals)) {
		return decimal.Zero, apperrors.Newf(apperrors.KindValidation, "price supports at most %d decimal places", decimals).
			WithDetail("field", "price")
	}
	return price, nil
}

func (s *AssetService) GetAsset(ctx context.Context, id uuid.UUID) (*models.AssetWithCreator, error) {
	asset, err := s.gateway.GetAssetWithCreator(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return asset, nil
}

func (s *AssetService) ListAssets(ctx context.Context, filter store.AssetFilter) ([]models.AssetWithCreator, int64, error) {
	assets, total, err := s.gateway.ListAssets(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, total, nil
}

// IncrementViews bumps the counter unconditionally; each call counts.
func (s *AssetService) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	count, err := s.gateway.IncrementAssetViews(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, apperrors.ErrAssetNotFound
		}
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	return count, nil
}
