package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	gateway := store.NewMemoryStore()
	service := NewSubscriptionService(gateway)
	purchases := NewPurchaseService(gateway, newFakeLedger(), testConfig(), nil)

	creator := &models.Account{Handle: "creator", Email: "creator@example.com"}
	require.NoError(t, gateway.CreateAccount(ctx, creator))
	asset := &models.Asset{CreatorID: creator.ID, Title: "Members", Monetization: models.MonetizationSubscription}
	require.NoError(t, gateway.CreateAsset(ctx, asset))

	first, err := service.Subscribe(ctx, testBuyer, creator.ID)
	require.NoError(t, err)
	assert.True(t, first.Active)

	again, err := service.Subscribe(ctx, testBuyer, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	ok, err := purchases.HasAccess(ctx, asset.ID, testBuyer)
	require.NoError(t, err)
	assert.True(t, ok)

	cancelled, err := service.Cancel(ctx, testBuyer, creator.ID)
	require.NoError(t, err)
	assert.False(t, cancelled.Active)
	assert.NotNil(t, cancelled.CancelledAt)

	ok, err = purchases.HasAccess(ctx, asset.ID, testBuyer)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = service.Cancel(ctx, testBuyer, creator.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	history, err := service.List(ctx, testBuyer)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubscribeValidation(t *testing.T) {
	ctx := context.Background()
	gateway := store.NewMemoryStore()
	service := NewSubscriptionService(gateway)

	creator := &models.Account{Handle: "creator", Email: "creator@example.com"}
	require.NoError(t, gateway.CreateAccount(ctx, creator))

	_, err := service.Subscribe(ctx, creator.ID.String(), creator.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = service.Subscribe(ctx, testBuyer, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
