// Package store is the persistence gateway: the single owner of accounts,
// assets, purchases and subscriptions.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Unique constraint names, shared by both gateway implementations.
const (
	ConstraintAccountHandle        = "idx_accounts_handle"
	ConstraintAccountEmail         = "idx_accounts_email"
	ConstraintAccountLedgerAddress = "idx_accounts_ledger_address"
	ConstraintPurchaseBuyerAsset   = "idx_purchases_buyer_asset"
	ConstraintPurchaseTxRef        = "idx_purchases_method_ref"
	ConstraintActiveSubscription   = "idx_subscriptions_active"
)

// DuplicateError reports which unique constraint rejected a write. The
// constraint may be empty when the database did not say.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	if e.Constraint == "" {
		return ErrDuplicate.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrDuplicate, e.Constraint)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// IsDuplicateOf reports whether err is a unique violation on constraint.
func IsDuplicateOf(err error, constraint string) bool {
	var dup *DuplicateError
	return errors.As(err, &dup) && dup.Constraint == constraint
}

// AssetFilter narrows ListAssets. Search matches title and description
// case-insensitively; Trending orders by view count.
type AssetFilter struct {
	utils.PaginationParams
	CreatorID *uuid.UUID
	Trending  bool
}

type Gateway interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error)
	GetAccountByLedgerAddress(ctx context.Context, address string) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error

	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetAssetWithCreator(ctx context.Context, id uuid.UUID) (*models.AssetWithCreator, error)
	ListAssets(ctx context.Context, filter AssetFilter) ([]models.AssetWithCreator, int64, error)
	// SetAssetContent replaces the locator and storage proof in one write.
	SetAssetContent(ctx context.Context, id uuid.UUID, locator string, proof *models.StorageProof) error
	// IncrementAssetViews adds one view and returns the new count.
	IncrementAssetViews(ctx context.Context, id uuid.UUID) (int64, error)

	// CreatePurchase fails with a *DuplicateError when the buyer already
	// owns the asset or the payment reference was already used.
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	GetPurchase(ctx context.Context, buyerID string, assetID uuid.UUID) (*models.Purchase, error)
	ListPurchasesByBuyer(ctx context.Context, buyerID string, page, limit int) ([]models.Purchase, int64, error)

	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetActiveSubscription(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error)
	DeactivateSubscription(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, subscriberID string) ([]models.Subscription, error)

	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	Ping(ctx context.Context) error
}
