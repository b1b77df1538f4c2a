package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

const pgUniqueViolation = "23505"

var assetSortFields = []string{"created_at", "title", "price", "view_count"}

// GormStore is the postgres Gateway.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &DuplicateError{Constraint: pgErr.ConstraintName}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &DuplicateError{}
	}
	return err
}

func (s *GormStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(account).Error)
}

func (s *GormStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *GormStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *GormStore) GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("LOWER(handle) = LOWER(?)", handle).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *GormStore) GetAccountByLedgerAddress(ctx context.Context, address string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("LOWER(ledger_address) = LOWER(?)", address).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *GormStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	result := s.db.WithContext(ctx).Model(account).Select(
		"display_name", "bio", "avatar_url", "ledger_address", "is_verified_creator",
	).Updates(account)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(asset).Error)
}

func (s *GormStore) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (s *GormStore) GetAssetWithCreator(ctx context.Context, id uuid.UUID) (*models.AssetWithCreator, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &models.AssetWithCreator{Asset: *asset}
	creator, err := s.GetAccount(ctx, asset.CreatorID)
	switch {
	case err == nil:
		result.Creator = creator.Summary()
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return result, nil
}

func (s *GormStore) ListAssets(ctx context.Context, filter AssetFilter) ([]models.AssetWithCreator, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Asset{})

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count assets: %w", err)
	}

	if filter.Trending {
		query = query.Order("view_count DESC").Order("created_at DESC")
	} else {
		query = utils.ApplySort(query, filter.PaginationParams, assetSortFields)
	}
	if filter.Limit > 0 {
		query = utils.ApplyPagination(query, filter.PaginationParams)
	}

	var assets []models.Asset
	if err := query.Find(&assets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list assets: %w", err)
	}

	creators, err := s.creatorSummaries(ctx, assets)
	if err != nil {
		return nil, 0, err
	}

	results := make([]models.AssetWithCreator, 0, len(assets))
	for _, asset := range assets {
		results = append(results, models.AssetWithCreator{Asset: asset, Creator: creators[asset.CreatorID]})
	}
	return results, total, nil
}

func (s *GormStore) creatorSummaries(ctx context.Context, assets []models.Asset) (map[uuid.UUID]*models.AccountSummary, error) {
	summaries := make(map[uuid.UUID]*models.AccountSummary)
	if len(assets) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, 0, len(assets))
	seen := make(map[uuid.UUID]bool)
	for _, asset := range assets {
		if !seen[asset.CreatorID] {
			seen[asset.CreatorID] = true
			ids = append(ids, asset.CreatorID)
		}
	}

	var accounts []models.Account
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to load creators: %w", err)
	}
	for i := range accounts {
		summaries[accounts[i].ID] = accounts[i].Summary()
	}
	return summaries, nil
}

func (s *GormStore) SetAssetContent(ctx context.Context, id uuid.UUID, locator string, proof *models.StorageProof) error {
	result := s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).Updates(map[string]interface{}{
		"content_locator": locator,
		"storage_proof":   proof,
	})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) IncrementAssetViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var asset models.Asset
	result := s.db.WithContext(ctx).Model(&asset).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "view_count"}}}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return asset.ViewCount, nil
}

func (s *GormStore) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(purchase).Error)
}

func (s *GormStore) GetPurchase(ctx context.Context, buyerID string, assetID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).
		Where("buyer_id = ? AND asset_id = ?", buyerID, assetID).
		First(&purchase).Error
	if err != nil {
		return nil, translate(err)
	}
	return &purchase, nil
}

func (s *GormStore) ListPurchasesByBuyer(ctx context.Context, buyerID string, page, limit int) ([]models.Purchase, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Purchase{}).Where("buyer_id = ?", buyerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	var purchases []models.Purchase
	err := utils.ApplyPagination(query.Order("created_at DESC"), utils.PaginationParams{Page: page, Limit: limit}).
		Find(&purchases).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, total, nil
}

func (s *GormStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(sub).Error)
}

func (s *GormStore) GetActiveSubscription(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ? AND creator_id = ? AND active = ?", subscriberID, creatorID, true).
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormStore) DeactivateSubscription(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&sub).
		Clauses(clause.Returning{}).
		Where("subscriber_id = ? AND creator_id = ? AND active = ?", subscriberID, creatorID, true).
		Updates(map[string]interface{}{"active": false, "cancelled_at": now})
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (s *GormStore) ListSubscriptions(ctx context.Context, subscriberID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *GormStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
