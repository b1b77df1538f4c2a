// internal/services/purchase_service.go
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

// PurchaseService quotes, verifies and records purchases, and answers
// whether a buyer may watch an asset.
type PurchaseService struct {
	gateway   store.Gateway
	ledger    ledger.Client
	config    *config.Config
	notifier  *NotificationService
	verifiers map[models.PaymentMethod]PaymentVerifier
	now       func() time.Time
}

type PurchaseQuote struct {
	AssetID          uuid.UUID       `json:"asset_id"`
	BuyerID          string          `json:"buyer_id"`
	Amount           decimal.Decimal `json:"amount"`
	AmountBaseUnits  string          `json:"amount_base_units"`
	Currency         string          `json:"currency"`
	Recipient        string          `json:"recipient"`
	TokenAddress     string          `json:"token_address,omitempty"`
	Decimals         int             `json:"decimals"`
	Nonce            string          `json:"nonce"`
	UnsignedPayload  string          `json:"unsigned_payload"`
	ExpiresAt        time.Time       `json:"expires_at"`
	AlreadyPurchased bool            `json:"already_purchased"`
}

// transferDescriptor is what the buyer signs. The server only encodes it.
type transferDescriptor struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo"`
	Nonce     string `json:"nonce"`
}

type ConfirmPurchaseInput struct {
	AssetID        uuid.UUID
	BuyerID        string
	TransactionRef string
	PaymentMethod  models.PaymentMethod
}

// ConfirmPurchaseResult carries a viewing token only when a purchase for a
// ledger address buyer was recorded by this call. Account buyers watch
// with their session token.
type ConfirmPurchaseResult struct {
	Purchase         *models.Purchase `json:"purchase"`
	AlreadyPurchased bool             `json:"already_purchased"`
	ViewingToken     string           `json:"viewing_token,omitempty"`
}

func NewPurchaseService(gateway store.Gateway, ledgerClient ledger.Client, config *config.Config, notifier *NotificationService, verifiers ...PaymentVerifier) *PurchaseService {
	byMethod := make(map[models.PaymentMethod]PaymentVerifier, len(verifiers))
	for _, v := range verifiers {
		byMethod[v.Method()] = v
	}
	return &PurchaseService{
		gateway:   gateway,
		ledger:    ledgerClient,
		config:    config,
		notifier:  notifier,
		verifiers: byMethod,
		now:       time.Now,
	}
}

// NormalizeBuyerID lowercases ledger addresses so one wallet maps to one
// buyer key. Account ids are left alone.
func NormalizeBuyerID(buyerID string) string {
	buyerID = strings.TrimSpace(buyerID)
	if ledger.LooksLikeAddress(buyerID) {
		return strings.ToLower(buyerID)
	}
	return buyerID
}

func (s *PurchaseService) loadAsset(ctx context.Context, assetID uuid.UUID) (*models.Asset, error) {
	asset, err := s.gateway.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load asset", err)
	}
	return asset, nil
}

// PricedAsset loads an asset that can be bought.
func (s *PurchaseService) PricedAsset(ctx context.Context, assetID uuid.UUID) (*models.Asset, error) {
	asset, err := s.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsPriced() {
		return nil, apperrors.ErrAssetNotForSale
	}
	return asset, nil
}

func (s *PurchaseService) QuotePurchase(ctx context.Context, assetID uuid.UUID, buyerID string) (*PurchaseQuote, error) {
	buyerID = NormalizeBuyerID(buyerID)

	asset, err := s.PricedAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	recipient := s.config.Ledger.RecipientAddress
	if recipient == "" {
		return nil, apperrors.New(apperrors.KindInternal, "payment recipient is not configured")
	}

	units, err := ledger.ToBaseUnits(asset.Price, s.config.Ledger.TokenDecimals)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "asset price cannot be expressed in token units", err)
	}

	nonce, err := utils.GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload, err := json.Marshal(transferDescriptor{
		Type:      "transfer",
		Token:     s.config.Ledger.TokenAddress,
		Recipient: recipient,
		Amount:    units.String(),
		Memo:      "asset:" + asset.ID.String(),
		Nonce:     nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer payload: %w", err)
	}

	quote := &PurchaseQuote{
		AssetID:         asset.ID,
		BuyerID:         buyerID,
		Amount:          asset.Price,
		AmountBaseUnits: units.String(),
		Currency:        s.config.Ledger.Currency,
		Recipient:       recipient,
		TokenAddress:    s.config.Ledger.TokenAddress,
		Decimals:        s.config.Ledger.TokenDecimals,
		Nonce:           nonce,
		UnsignedPayload: base64.StdEncoding.EncodeToString(payload),
		ExpiresAt:       s.now().UTC().Add(time.Duration(s.config.Ledger.QuoteTTLMinutes) * time.Minute),
	}

	if buyerID != "" {
		if _, err := s.gateway.GetPurchase(ctx, buyerID, asset.ID); err == nil {
			quote.AlreadyPurchased = true
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to check existing purchase", err)
		}
	}

	return quote, nil
}

func (s *PurchaseService) ConfirmPurchase(ctx context.Context, in ConfirmPurchaseInput) (*ConfirmPurchaseResult, error) {
	buyerID := NormalizeBuyerID(in.BuyerID)
	if buyerID == "" {
		return nil, apperrors.New(apperrors.KindValidation, "buyer is required")
	}

	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentMethodLedger
	}
	verifier, ok := s.verifiers[method]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindValidation, "unsupported payment method %q", method)
	}

	asset, err := s.PricedAsset(ctx, in.AssetID)
	if err != nil {
		return nil, err
	}

	buyerAddress, err := s.resolveBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.gateway.GetPurchase(ctx, buyerID, asset.ID); err == nil {
		return &ConfirmPurchaseResult{Purchase: existing, AlreadyPurchased: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to check existing purchase", err)
	}

	payment, err := verifier.Verify(ctx, VerifyInput{
		Asset:          asset,
		BuyerID:        buyerID,
		BuyerAddress:   buyerAddress,
		TransactionRef: strings.TrimSpace(in.TransactionRef),
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"asset_id":        asset.ID,
			"buyer_id":        buyerID,
			"payment_method":  method,
			"transaction_ref": in.TransactionRef,
		}).WithError(err).Info("Purchase verification did not pass")
		return nil, err
	}

	purchase := &models.Purchase{
		BuyerID:        buyerID,
		AssetID:        asset.ID,
		Amount:         payment.Amount,
		PaymentMethod:  method,
		TransactionRef: payment.TransactionRef,
	}
	if err := s.gateway.CreatePurchase(ctx, purchase); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.Wrap(apperrors.KindInternal, "failed to record purchase", err)
		}
		// Lost a race for the same pair, or the reference already paid for
		// something else.
		existing, getErr := s.gateway.GetPurchase(ctx, buyerID, asset.ID)
		if getErr == nil {
			return &ConfirmPurchaseResult{Purchase: existing, AlreadyPurchased: true}, nil
		}
		if errors.Is(getErr, store.ErrNotFound) {
			return nil, verificationFailed("transaction_already_used", "transaction already used for another purchase")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load purchase", getErr)
	}

	logrus.WithFields(logrus.Fields{
		"purchase_id":    purchase.ID,
		"asset_id":       asset.ID,
		"buyer_id":       buyerID,
		"amount":         purchase.Amount.String(),
		"payment_method": method,
	}).Info("Purchase recorded")

	if s.notifier != nil {
		go s.notifier.NotifyPurchase(context.Background(), purchase, asset)
	}

	result := &ConfirmPurchaseResult{Purchase: purchase}
	if ledger.LooksLikeAddress(buyerID) {
		token, err := utils.GenerateViewingToken(buyerID, asset.ID, s.config.JWT.ViewingTokenTTL)
		if err != nil {
			logrus.WithField("purchase_id", purchase.ID).WithError(err).Error("Failed to sign viewing token")
		}
		result.ViewingToken = token
	}
	return result, nil
}

// resolveBuyer accepts a ledger address or the id of an existing account
// and returns the ledger address the payment must come from. It is empty
// for an account that has not linked one.
func (s *PurchaseService) resolveBuyer(ctx context.Context, buyerID string) (string, error) {
	if ledger.LooksLikeAddress(buyerID) {
		return buyerID, nil
	}
	accountID, err := uuid.Parse(buyerID)
	if err != nil {
		return "", apperrors.New(apperrors.KindValidation, "buyer must be a ledger address or an account id").
			WithDetail("field", "buyer")
	}
	account, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperrors.New(apperrors.KindValidation, "buyer account does not exist").
				WithDetail("field", "buyer")
		}
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to load buyer account", err)
	}
	return account.Address(), nil
}

// RelayTransaction submits a transfer the buyer already signed and returns
// the ledger reference to confirm later.
func (s *PurchaseService) RelayTransaction(ctx context.Context, assetID uuid.UUID, signedPayload []byte) (string, error) {
	if len(signedPayload) == 0 {
		return "", apperrors.New(apperrors.KindValidation, "signed_transaction is empty")
	}
	if _, err := s.PricedAsset(ctx, assetID); err != nil {
		return "", err
	}

	ref, err := s.ledger.Transfer(ctx, signedPayload)
	if err != nil {
		return "", ledgerError("transfer", err)
	}
	return ref, nil
}

func (s *PurchaseService) HasAccess(ctx context.Context, assetID uuid.UUID, buyerID string) (bool, error) {
	asset, err := s.loadAsset(ctx, assetID)
	if err != nil {
		return false, err
	}
	return s.CanAccess(ctx, asset, buyerID)
}

// CanAccess is HasAccess for an asset the caller already loaded.
func (s *PurchaseService) CanAccess(ctx context.Context, asset *models.Asset, buyerID string) (bool, error) {
	if asset.Monetization == models.MonetizationFree {
		return true, nil
	}

	buyerID = NormalizeBuyerID(buyerID)
	if buyerID == "" {
		return false, nil
	}
	if buyerID == asset.CreatorID.String() {
		return true, nil
	}

	_, err := s.gateway.GetPurchase(ctx, buyerID, asset.ID)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, apperrors.Wrap(apperrors.KindInternal, "failed to check purchase", err)
	}

	if asset.Monetization != models.MonetizationSubscription {
		return false, nil
	}

	_, err = s.gateway.GetActiveSubscription(ctx, buyerID, asset.CreatorID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, apperrors.Wrap(apperrors.KindInternal, "failed to check subscription", err)
	}
}

func (s *PurchaseService) ListPurchases(ctx context.Context, buyerID string, params utils.PaginationParams) ([]models.Purchase, int64, error) {
	purchases, total, err := s.gateway.ListPurchasesByBuyer(ctx, NormalizeBuyerID(buyerID), params.Page, params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, total, nil
}
