package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

// MemoryStore is an in-process Gateway. It enforces the same unique
// constraints as the postgres schema.
type MemoryStore struct {
	mu            sync.RWMutex
	accounts      map[uuid.UUID]*models.Account
	assets        map[uuid.UUID]*models.Asset
	purchases     map[uuid.UUID]*models.Purchase
	subscriptions map[uuid.UUID]*models.Subscription
	auditLogs     []models.AuditLog
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[uuid.UUID]*models.Account),
		assets:        make(map[uuid.UUID]*models.Asset),
		purchases:     make(map[uuid.UUID]*models.Purchase),
		subscriptions: make(map[uuid.UUID]*models.Subscription),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		switch {
		case strings.EqualFold(existing.Handle, account.Handle):
			return &DuplicateError{Constraint: ConstraintAccountHandle}
		case strings.EqualFold(existing.Email, account.Email):
			return &DuplicateError{Constraint: ConstraintAccountEmail}
		case account.LedgerAddress != nil && strings.EqualFold(existing.Address(), *account.LedgerAddress):
			return &DuplicateError{Constraint: ConstraintAccountLedgerAddress}
		}
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := m.now()
	account.CreatedAt, account.UpdatedAt = now, now
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *account
	return &out, nil
}

func (m *MemoryStore) findAccount(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, account := range m.accounts {
		if match(account) {
			out := *account
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.findAccount(func(a *models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (m *MemoryStore) GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	return m.findAccount(func(a *models.Account) bool { return strings.EqualFold(a.Handle, handle) })
}

func (m *MemoryStore) GetAccountByLedgerAddress(ctx context.Context, address string) (*models.Account, error) {
	if address == "" {
		return nil, ErrNotFound
	}
	return m.findAccount(func(a *models.Account) bool { return strings.EqualFold(a.Address(), address) })
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.accounts[account.ID]
	if !ok {
		return ErrNotFound
	}
	if account.LedgerAddress != nil {
		for id, other := range m.accounts {
			if id != account.ID && strings.EqualFold(other.Address(), *account.LedgerAddress) {
				return &DuplicateError{Constraint: ConstraintAccountLedgerAddress}
			}
		}
	}

	existing.DisplayName = account.DisplayName
	existing.Bio = account.Bio
	existing.AvatarURL = account.AvatarURL
	existing.LedgerAddress = account.LedgerAddress
	existing.IsVerifiedCreator = account.IsVerifiedCreator
	existing.UpdatedAt = m.now()
	account.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *MemoryStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	now := m.now()
	asset.CreatedAt, asset.UpdatedAt = now, now
	stored := *asset
	m.assets[asset.ID] = &stored
	return nil
}

func (m *MemoryStore) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	asset, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAsset(asset), nil
}

func (m *MemoryStore) GetAssetWithCreator(ctx context.Context, id uuid.UUID) (*models.AssetWithCreator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	asset, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withCreator(asset), nil
}

func (m *MemoryStore) withCreator(asset *models.Asset) *models.AssetWithCreator {
	out := &models.AssetWithCreator{Asset: *copyAsset(asset)}
	if creator, ok := m.accounts[asset.CreatorID]; ok {
		out.Creator = creator.Summary()
	}
	return out
}

func (m *MemoryStore) ListAssets(ctx context.Context, filter AssetFilter) ([]models.AssetWithCreator, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*models.Asset
	for _, asset := range m.assets {
		if filter.Category != "" && asset.Category != filter.Category {
			continue
		}
		if filter.CreatorID != nil && asset.CreatorID != *filter.CreatorID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(asset.Title), search) &&
			!strings.Contains(strings.ToLower(asset.Description), search) {
			continue
		}
		matched = append(matched, asset)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.Trending && matched[i].ViewCount != matched[j].ViewCount {
			return matched[i].ViewCount > matched[j].ViewCount
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start, end := filter.PaginationParams.Window(len(matched))
	matched = matched[start:end]

	results := make([]models.AssetWithCreator, 0, len(matched))
	for _, asset := range matched {
		results = append(results, *m.withCreator(asset))
	}
	return results, total, nil
}

func (m *MemoryStore) SetAssetContent(ctx context.Context, id uuid.UUID, locator string, proof *models.StorageProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	asset, ok := m.assets[id]
	if !ok {
		return ErrNotFound
	}
	asset.ContentLocator = locator
	if proof != nil {
		p := *proof
		asset.StorageProof = &p
	} else {
		asset.StorageProof = nil
	}
	asset.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) IncrementAssetViews(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	asset, ok := m.assets[id]
	if !ok {
		return 0, ErrNotFound
	}
	asset.ViewCount++
	return asset.ViewCount, nil
}

func (m *MemoryStore) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.purchases {
		if existing.BuyerID == purchase.BuyerID && existing.AssetID == purchase.AssetID {
			return &DuplicateError{Constraint: ConstraintPurchaseBuyerAsset}
		}
		if existing.PaymentMethod == purchase.PaymentMethod && existing.TransactionRef == purchase.TransactionRef {
			return &DuplicateError{Constraint: ConstraintPurchaseTxRef}
		}
	}

	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	purchase.CreatedAt = m.now()
	stored := *purchase
	m.purchases[purchase.ID] = &stored
	return nil
}

func (m *MemoryStore) GetPurchase(ctx context.Context, buyerID string, assetID uuid.UUID) (*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, purchase := range m.purchases {
		if purchase.BuyerID == buyerID && purchase.AssetID == assetID {
			out := *purchase
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListPurchasesByBuyer(ctx context.Context, buyerID string, page, limit int) ([]models.Purchase, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var purchases []models.Purchase
	for _, purchase := range m.purchases {
		if purchase.BuyerID == buyerID {
			purchases = append(purchases, *purchase)
		}
	}
	sort.Slice(purchases, func(i, j int) bool {
		return purchases[i].CreatedAt.After(purchases[j].CreatedAt)
	})

	total := int64(len(purchases))
	start, end := utils.PaginationParams{Page: page, Limit: limit}.Window(len(purchases))
	purchases = purchases[start:end]
	return purchases, total, nil
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.Active {
		for _, existing := range m.subscriptions {
			if existing.Active && existing.SubscriberID == sub.SubscriberID && existing.CreatorID == sub.CreatorID {
				return &DuplicateError{Constraint: ConstraintActiveSubscription}
			}
		}
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = m.now()
	stored := *sub
	m.subscriptions[sub.ID] = &stored
	return nil
}

func (m *MemoryStore) GetActiveSubscription(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		if sub.Active && sub.SubscriberID == subscriberID && sub.CreatorID == creatorID {
			out := *sub
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) DeactivateSubscription(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subscriptions {
		if sub.Active && sub.SubscriberID == subscriberID && sub.CreatorID == creatorID {
			now := m.now()
			sub.Active = false
			sub.CancelledAt = &now
			out := *sub
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListSubscriptions(ctx context.Context, subscriberID string) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var subs []models.Subscription
	for _, sub := range m.subscriptions {
		if sub.SubscriberID == subscriberID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

func (m *MemoryStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = m.now()
	m.auditLogs = append(m.auditLogs, *entry)
	return nil
}

// AuditLogs returns a copy of the recorded audit entries.
func (m *MemoryStore) AuditLogs() []models.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AuditLog, len(m.auditLogs))
	copy(out, m.auditLogs)
	return out
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyAsset(asset *models.Asset) *models.Asset {
	out := *asset
	if asset.Tags != nil {
		out.Tags = append(out.Tags[:0:0], asset.Tags...)
	}
	if asset.StorageProof != nil {
		p := *asset.StorageProof
		out.StorageProof = &p
	}
	return &out
}
