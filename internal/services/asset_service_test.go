package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

func setupAssetService(t *testing.T) (*AssetService, *store.MemoryStore, *models.Account) {
	gateway := store.NewMemoryStore()
	creator := &models.Account{Handle: "creator", Email: "creator@example.com", DisplayName: "Creator"}
	require.NoError(t, gateway.CreateAccount(context.Background(), creator))
	return NewAssetService(gateway, testConfig()), gateway, creator
}

func TestCreateAssetPriceRules(t *testing.T) {
	service, _, creator := setupAssetService(t)
	ctx := context.Background()

	free, err := service.CreateAsset(ctx, creator.ID, &CreateAssetRequest{
		Title:        "Free clip",
		Category:     " Music ",
		Monetization: models.MonetizationFree,
		Price:        decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.True(t, free.Price.IsZero())
	assert.Equal(t, "music", free.Category)

	_, err = service.CreateAsset(ctx, creator.ID, &CreateAssetRequest{
		Title:        "Paid clip",
		Monetization: models.MonetizationPayPerView,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = service.CreateAsset(ctx, creator.ID, &CreateAssetRequest{
		Title:        "Too precise",
		Monetization: models.MonetizationPayPerView,
		Price:        decimal.RequireFromString("1.0000001"),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	paid, err := service.CreateAsset(ctx, creator.ID, &CreateAssetRequest{
		Title:        "Paid clip",
		Monetization: models.MonetizationPayPerView,
		Price:        decimal.RequireFromString("10.50"),
		Tags:         []string{"live"},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.5").Equal(paid.Price))
	assert.Empty(t, paid.ContentLocator, "content is attached through the upload endpoints only")
	assert.True(t, paid.IsPriced())

	sub, err := service.CreateAsset(ctx, creator.ID, &CreateAssetRequest{
		Title:        "Members only",
		Monetization: models.MonetizationSubscription,
	})
	require.NoError(t, err)
	assert.False(t, sub.IsPriced())

	_, err = service.CreateAsset(ctx, uuid.New(), &CreateAssetRequest{
		Title:        "Ghost",
		Monetization: models.MonetizationFree,
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetListAndIncrementAssets(t *testing.T) {
	service, _, creator := setupAssetService(t)
	ctx := context.Background()

	asset, err := service.CreateAsset(ctx, creator.ID, &CreateAssetRequest{
		Title:        "Guitar lesson",
		Category:     "music",
		Monetization: models.MonetizationFree,
	})
	require.NoError(t, err)

	detail, err := service.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Creator)
	assert.Equal(t, "creator", detail.Creator.Handle)

	_, err = service.GetAsset(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrAssetNotFound)

	list, total, err := service.ListAssets(ctx, store.AssetFilter{PaginationParams: utils.PaginationParams{Search: "guitar"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	for want := int64(1); want <= 3; want++ {
		count, err := service.IncrementViews(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	_, err = service.IncrementViews(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrAssetNotFound)
}

func TestCreateAssetRequestValidation(t *testing.T) {
	req := &CreateAssetRequest{
		Title:        "ok title",
		Monetization: "rental",
		Price:        decimal.NewFromInt(-1),
	}
	errs := utils.GetValidationErrors(utils.ValidateStruct(req))

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.True(t, fields["monetization"])
	assert.True(t, fields["price"])
}
