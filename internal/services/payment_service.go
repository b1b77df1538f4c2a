// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/models"
)

// PaymentService handles card payments through Stripe. It creates the
// PaymentIntent a client confirms with Stripe.js and verifies the intent
// when the client reports it back as a purchase.
type PaymentService struct {
	config    *config.Config
	getIntent func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	newIntent func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type PaymentIntentResponse struct {
	ClientSecret   string `json:"client_secret"`
	PaymentID      string `json:"payment_id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

func NewPaymentService(config *config.Config) *PaymentService {
	// Initialize Stripe
	stripe.Key = config.Payment.StripeSecretKey

	return &PaymentService{
		config:    config,
		getIntent: paymentintent.Get,
		newIntent: paymentintent.New,
	}
}

func (s *PaymentService) Method() models.PaymentMethod { return models.PaymentMethodCard }

func (s *PaymentService) enabled() bool {
	return s.config.Payment.StripeSecretKey != ""
}

// priceInCents rounds up so a card payment never settles below the price.
func priceInCents(price decimal.Decimal) int64 {
	return price.Shift(2).Ceil().IntPart()
}

// CreatePaymentIntent starts a card checkout for one asset. The asset id and
// buyer id travel in the intent metadata and are checked again on Verify.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, asset *models.Asset, buyerID string) (*PaymentIntentResponse, error) {
	if !s.enabled() {
		return nil, apperrors.New(apperrors.KindAssetNotForSale, "card payments are not enabled")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(priceInCents(asset.Price)),
		Currency: stripe.String(s.config.Payment.Currency),
	}
	params.Context = ctx
	params.AddMetadata("asset_id", asset.ID.String())
	params.AddMetadata("buyer_id", buyerID)

	pi, err := s.newIntent(params)
	if err != nil {
		return nil, stripeError("create_payment_intent", err)
	}

	return &PaymentIntentResponse{
		ClientSecret:   pi.ClientSecret,
		PaymentID:      pi.ID,
		Status:         string(pi.Status),
		Amount:         pi.Amount,
		Currency:       string(pi.Currency),
		PublishableKey: s.config.Payment.StripePublishableKey,
	}, nil
}

// Verify checks that the PaymentIntent named by TransactionRef paid for the
// asset in full and was created for the same buyer.
func (s *PaymentService) Verify(ctx context.Context, in VerifyInput) (*VerifiedPayment, error) {
	if !s.enabled() {
		return nil, verificationFailed("card_not_configured", "card payments are not enabled")
	}
	if in.TransactionRef == "" {
		return nil, apperrors.New(apperrors.KindValidation, "transaction_ref is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.getIntent(in.TransactionRef, params)
	if err != nil {
		return nil, stripeError("get_payment_intent", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture:
		return nil, apperrors.New(apperrors.KindPaymentPending, "card payment is not complete yet").
			WithDetail("transaction_ref", pi.ID)
	default:
		return nil, verificationFailed("payment_not_succeeded", fmt.Sprintf("card payment status is %s", pi.Status))
	}

	if !strings.EqualFold(string(pi.Currency), s.config.Payment.Currency) {
		return nil, verificationFailed("wrong_currency", "card payment used a different currency")
	}
	if pi.Metadata["asset_id"] != in.Asset.ID.String() {
		return nil, verificationFailed("wrong_asset", "card payment was made for a different asset")
	}
	if pi.Metadata["buyer_id"] != NormalizeBuyerID(in.BuyerID) {
		return nil, verificationFailed("wrong_buyer", "card payment was made by a different buyer")
	}
	if pi.AmountReceived < priceInCents(in.Asset.Price) {
		return nil, verificationFailed("insufficient_amount", "card payment is below the asset price")
	}

	return &VerifiedPayment{
		Amount:         decimal.New(pi.AmountReceived, -2),
		TransactionRef: pi.ID,
	}, nil
}

func stripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= http.StatusBadRequest && stripeErr.HTTPStatusCode < http.StatusInternalServerError {
		return apperrors.Wrap(apperrors.KindVerificationFailed, "payment processor rejected the request", err).
			WithDetail("reason", string(stripeErr.Code))
	}
	logrus.WithError(err).WithField("op", op).Warn("Stripe call failed")
	return apperrors.Wrap(apperrors.KindLedgerUnavailable, "payment processor unavailable, try again", err)
}
