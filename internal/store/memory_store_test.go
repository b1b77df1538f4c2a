package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type MemoryStoreTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *MemoryStore
	creator *models.Account
}

func (suite *MemoryStoreTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = NewMemoryStore()

	address := "0x1111111111111111111111111111111111111111"
	suite.creator = &models.Account{
		Handle:        "creator",
		Email:         "creator@example.com",
		DisplayName:   "Creator",
		LedgerAddress: &address,
	}
	suite.Require().NoError(suite.store.CreateAccount(suite.ctx, suite.creator))
}

func (suite *MemoryStoreTestSuite) newAsset(title string, views int64) *models.Asset {
	asset := &models.Asset{
		CreatorID:    suite.creator.ID,
		Title:        title,
		Description:  "A video about " + title,
		Category:     "music",
		Monetization: models.MonetizationPayPerView,
		Price:        decimal.NewFromInt(10),
		ViewCount:    views,
	}
	suite.Require().NoError(suite.store.CreateAsset(suite.ctx, asset))
	return asset
}

func (suite *MemoryStoreTestSuite) TestAccountUniqueness() {
	dup := &models.Account{Handle: "CREATOR", Email: "other@example.com"}
	err := suite.store.CreateAccount(suite.ctx, dup)
	suite.True(IsDuplicateOf(err, ConstraintAccountHandle))

	dup = &models.Account{Handle: "other", Email: "Creator@Example.com"}
	err = suite.store.CreateAccount(suite.ctx, dup)
	suite.True(IsDuplicateOf(err, ConstraintAccountEmail))
	suite.ErrorIs(err, ErrDuplicate)
}

func (suite *MemoryStoreTestSuite) TestAccountLookups() {
	byEmail, err := suite.store.GetAccountByEmail(suite.ctx, "CREATOR@example.com")
	suite.Require().NoError(err)
	suite.Equal(suite.creator.ID, byEmail.ID)

	byAddress, err := suite.store.GetAccountByLedgerAddress(suite.ctx, "0x1111111111111111111111111111111111111111")
	suite.Require().NoError(err)
	suite.Equal(suite.creator.ID, byAddress.ID)

	_, err = suite.store.GetAccountByHandle(suite.ctx, "nobody")
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *MemoryStoreTestSuite) TestUpdateAccount() {
	account, err := suite.store.GetAccount(suite.ctx, suite.creator.ID)
	suite.Require().NoError(err)

	account.Bio = "updated"
	suite.Require().NoError(suite.store.UpdateAccount(suite.ctx, account))

	reloaded, err := suite.store.GetAccount(suite.ctx, suite.creator.ID)
	suite.Require().NoError(err)
	suite.Equal("updated", reloaded.Bio)

	suite.ErrorIs(suite.store.UpdateAccount(suite.ctx, &models.Account{BaseModel: models.BaseModel{ID: uuid.New()}}), ErrNotFound)
}

func (suite *MemoryStoreTestSuite) TestListAssetsFilters() {
	suite.newAsset("Guitar lesson", 5)
	suite.newAsset("Drum solo", 50)
	other := &models.Asset{CreatorID: uuid.New(), Title: "Cooking", Category: "food", Monetization: models.MonetizationFree}
	suite.Require().NoError(suite.store.CreateAsset(suite.ctx, other))

	all, total, err := suite.store.ListAssets(suite.ctx, AssetFilter{})
	suite.Require().NoError(err)
	suite.Equal(int64(3), total)
	suite.Len(all, 3)

	music, _, err := suite.store.ListAssets(suite.ctx, AssetFilter{PaginationParams: utils.PaginationParams{Category: "music"}})
	suite.Require().NoError(err)
	suite.Len(music, 2)
	for _, a := range music {
		suite.Require().NotNil(a.Creator)
		suite.Equal("creator", a.Creator.Handle)
	}

	searched, _, err := suite.store.ListAssets(suite.ctx, AssetFilter{PaginationParams: utils.PaginationParams{Search: "GUITAR"}})
	suite.Require().NoError(err)
	suite.Require().Len(searched, 1)
	suite.Equal("Guitar lesson", searched[0].Title)

	trending, _, err := suite.store.ListAssets(suite.ctx, AssetFilter{Trending: true})
	suite.Require().NoError(err)
	suite.Equal("Drum solo", trending[0].Title)

	creatorID := suite.creator.ID
	mine, _, err := suite.store.ListAssets(suite.ctx, AssetFilter{CreatorID: &creatorID})
	suite.Require().NoError(err)
	suite.Len(mine, 2)

	paged, total, err := suite.store.ListAssets(suite.ctx, AssetFilter{PaginationParams: utils.PaginationParams{Page: 2, Limit: 2}})
	suite.Require().NoError(err)
	suite.Equal(int64(3), total)
	suite.Len(paged, 1)
}

func (suite *MemoryStoreTestSuite) TestSetAssetContentAndViews() {
	asset := suite.newAsset("Clip", 0)
	proof := &models.StorageProof{Backend: "mem", ContentID: "cid", Digest: "sha256:00", Size: 2}

	suite.Require().NoError(suite.store.SetAssetContent(suite.ctx, asset.ID, "mem://cid", proof))
	proof.ContentID = "mutated"

	reloaded, err := suite.store.GetAsset(suite.ctx, asset.ID)
	suite.Require().NoError(err)
	suite.Equal("mem://cid", reloaded.ContentLocator)
	suite.Equal("cid", reloaded.StorageProof.ContentID)

	count, err := suite.store.IncrementAssetViews(suite.ctx, asset.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	_, err = suite.store.IncrementAssetViews(suite.ctx, uuid.New())
	suite.ErrorIs(err, ErrNotFound)
	suite.ErrorIs(suite.store.SetAssetContent(suite.ctx, uuid.New(), "x", nil), ErrNotFound)
}

func (suite *MemoryStoreTestSuite) TestPurchaseConstraints() {
	asset := suite.newAsset("Paid", 0)
	first := &models.Purchase{BuyerID: "buyer", AssetID: asset.ID, Amount: decimal.NewFromInt(10), PaymentMethod: models.PaymentMethodLedger, TransactionRef: "0xaaa"}
	suite.Require().NoError(suite.store.CreatePurchase(suite.ctx, first))

	again := &models.Purchase{BuyerID: "buyer", AssetID: asset.ID, Amount: decimal.NewFromInt(10), PaymentMethod: models.PaymentMethodLedger, TransactionRef: "0xbbb"}
	suite.True(IsDuplicateOf(suite.store.CreatePurchase(suite.ctx, again), ConstraintPurchaseBuyerAsset))

	other := suite.newAsset("Other", 0)
	reused := &models.Purchase{BuyerID: "someone", AssetID: other.ID, Amount: decimal.NewFromInt(10), PaymentMethod: models.PaymentMethodLedger, TransactionRef: "0xaaa"}
	suite.True(IsDuplicateOf(suite.store.CreatePurchase(suite.ctx, reused), ConstraintPurchaseTxRef))

	got, err := suite.store.GetPurchase(suite.ctx, "buyer", asset.ID)
	suite.Require().NoError(err)
	suite.Equal(first.ID, got.ID)

	list, total, err := suite.store.ListPurchasesByBuyer(suite.ctx, "buyer", 1, 20)
	suite.Require().NoError(err)
	suite.Equal(int64(1), total)
	suite.Len(list, 1)
}

func (suite *MemoryStoreTestSuite) TestConcurrentPurchasesInsertOnce() {
	asset := suite.newAsset("Race", 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := suite.store.CreatePurchase(suite.ctx, &models.Purchase{
				BuyerID:        "buyer",
				AssetID:        asset.ID,
				PaymentMethod:  models.PaymentMethodLedger,
				TransactionRef: fmt.Sprintf("0x%d", i),
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrDuplicate) {
				suite.Fail("unexpected error", err.Error())
			}
		}(i)
	}
	wg.Wait()

	suite.Equal(1, successes)
}

func (suite *MemoryStoreTestSuite) TestSubscriptions() {
	sub := &models.Subscription{SubscriberID: "fan", CreatorID: suite.creator.ID, Active: true}
	suite.Require().NoError(suite.store.CreateSubscription(suite.ctx, sub))

	dup := &models.Subscription{SubscriberID: "fan", CreatorID: suite.creator.ID, Active: true}
	suite.True(IsDuplicateOf(suite.store.CreateSubscription(suite.ctx, dup), ConstraintActiveSubscription))

	active, err := suite.store.GetActiveSubscription(suite.ctx, "fan", suite.creator.ID)
	suite.Require().NoError(err)
	suite.Equal(sub.ID, active.ID)

	cancelled, err := suite.store.DeactivateSubscription(suite.ctx, "fan", suite.creator.ID)
	suite.Require().NoError(err)
	suite.False(cancelled.Active)
	suite.NotNil(cancelled.CancelledAt)

	_, err = suite.store.GetActiveSubscription(suite.ctx, "fan", suite.creator.ID)
	suite.ErrorIs(err, ErrNotFound)

	time.Sleep(time.Millisecond)
	suite.Require().NoError(suite.store.CreateSubscription(suite.ctx, &models.Subscription{SubscriberID: "fan", CreatorID: suite.creator.ID, Active: true}))

	history, err := suite.store.ListSubscriptions(suite.ctx, "fan")
	suite.Require().NoError(err)
	suite.Len(history, 2)
	suite.True(history[0].Active)
}

func (suite *MemoryStoreTestSuite) TestAuditLogAndPing() {
	suite.Require().NoError(suite.store.CreateAuditLog(suite.ctx, &models.AuditLog{Action: "POST /v1/assets", Status: 201}))
	suite.Len(suite.store.AuditLogs(), 1)
	suite.NoError(suite.store.Ping(suite.ctx))
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}
