// internal/services/payment_verifiers.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/models"
)

// VerifyInput is what a PaymentVerifier needs to judge one payment claim.
// BuyerAddress is the buyer's ledger address when one is known.
type VerifyInput struct {
	Asset          *models.Asset
	BuyerID        string
	BuyerAddress   string
	TransactionRef string
}

// VerifiedPayment is the amount actually paid and the reference to record.
type VerifiedPayment struct {
	Amount         decimal.Decimal
	TransactionRef string
}

// PaymentVerifier checks a payment claim for one payment method. It never
// moves funds and never writes anything.
type PaymentVerifier interface {
	Method() models.PaymentMethod
	Verify(ctx context.Context, in VerifyInput) (*VerifiedPayment, error)
}

func verificationFailed(reason, message string) *apperrors.Error {
	return apperrors.New(apperrors.KindVerificationFailed, message).WithDetail("reason", reason)
}

// ledgerError converts ledger client failures into caller-facing kinds.
// Unknown outcomes stay retryable; rejections are final.
func ledgerError(op string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return verificationFailed("transaction_not_found", "transaction not found on ledger")
	case errors.Is(err, ledger.ErrRejected):
		return apperrors.Wrap(apperrors.KindVerificationFailed, "ledger rejected the request", err).
			WithDetail("reason", "rejected")
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.KindLedgerUnavailable, "request cancelled before the ledger answered", err)
	default:
		logrus.WithError(err).WithField("op", op).Warn("Ledger call failed")
		return apperrors.Wrap(apperrors.KindLedgerUnavailable, "ledger unavailable, try again", err)
	}
}

func priceInBaseUnits(asset *models.Asset, decimals int) (*big.Int, error) {
	units, err := ledger.ToBaseUnits(asset.Price, decimals)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "asset price cannot be expressed in token units", err)
	}
	return units, nil
}

// LedgerVerifier accepts one confirmed transfer of at least the asset price
// from the buyer's address to the platform recipient.
type LedgerVerifier struct {
	client ledger.Client
	cfg    config.LedgerConfig
}

func NewLedgerVerifier(client ledger.Client, cfg config.LedgerConfig) *LedgerVerifier {
	return &LedgerVerifier{client: client, cfg: cfg}
}

func (v *LedgerVerifier) Method() models.PaymentMethod { return models.PaymentMethodLedger }

func (v *LedgerVerifier) Verify(ctx context.Context, in VerifyInput) (*VerifiedPayment, error) {
	if in.TransactionRef == "" {
		return nil, apperrors.New(apperrors.KindValidation, "transaction_ref is required")
	}
	if in.BuyerAddress == "" {
		return nil, apperrors.New(apperrors.KindValidation, "link a ledger address to the account before paying by transfer").
			WithDetail("field", "ledger_address")
	}

	price, err := priceInBaseUnits(in.Asset, v.cfg.TokenDecimals)
	if err != nil {
		return nil, err
	}

	tx, err := v.client.LookupTransaction(ctx, in.TransactionRef)
	if err != nil {
		return nil, ledgerError("lookup_transaction", err)
	}

	switch tx.Status {
	case ledger.TxStatusConfirmed:
	case ledger.TxStatusPending:
		return nil, apperrors.New(apperrors.KindPaymentPending, "transaction is not confirmed yet").
			WithDetail("transaction_ref", in.TransactionRef)
	default:
		return nil, verificationFailed("transaction_failed", "transaction did not succeed")
	}

	if !ledger.SameAddress(tx.Recipient, v.cfg.RecipientAddress) {
		return nil, verificationFailed("wrong_recipient", "transaction was not sent to the platform recipient")
	}
	if v.cfg.TokenAddress != "" && !ledger.SameAddress(tx.Token, v.cfg.TokenAddress) {
		return nil, verificationFailed("wrong_token", "transaction used a different token")
	}
	if !ledger.SameAddress(tx.Sender, in.BuyerAddress) {
		return nil, verificationFailed("wrong_sender", "transaction was sent by a different account")
	}
	if tx.Amount == nil || tx.Amount.Cmp(price) < 0 {
		return nil, verificationFailed("insufficient_amount", "transferred amount is below the asset price").
			WithDetail("required", in.Asset.Price.StringFixed(int32(v.cfg.TokenDecimals)))
	}

	ref := tx.Hash
	if ref == "" {
		ref = in.TransactionRef
	}
	return &VerifiedPayment{
		Amount:         ledger.FromBaseUnits(tx.Amount, v.cfg.TokenDecimals),
		TransactionRef: strings.ToLower(ref),
	}, nil
}

// TokenVerifier accepts a buyer whose allowance to the recipient and
// balance on the price token both cover the asset price.
type TokenVerifier struct {
	client ledger.Client
	cfg    config.LedgerConfig
}

func NewTokenVerifier(client ledger.Client, cfg config.LedgerConfig) *TokenVerifier {
	return &TokenVerifier{client: client, cfg: cfg}
}

func (v *TokenVerifier) Method() models.PaymentMethod { return models.PaymentMethodToken }

func (v *TokenVerifier) Verify(ctx context.Context, in VerifyInput) (*VerifiedPayment, error) {
	if in.BuyerAddress == "" {
		return nil, apperrors.New(apperrors.KindValidation, "token payments need a buyer ledger address")
	}
	if v.cfg.TokenAddress == "" {
		return nil, verificationFailed("token_not_configured", "token payments are not enabled")
	}

	price, err := priceInBaseUnits(in.Asset, v.cfg.TokenDecimals)
	if err != nil {
		return nil, err
	}

	allowance, err := v.client.Allowance(ctx, v.cfg.TokenAddress, in.BuyerAddress, v.cfg.RecipientAddress)
	if err != nil {
		return nil, ledgerError("allowance", err)
	}
	if allowance.Cmp(price) < 0 {
		return nil, verificationFailed("insufficient_allowance", "token allowance is below the asset price")
	}

	balance, err := v.client.BalanceOf(ctx, v.cfg.TokenAddress, in.BuyerAddress)
	if err != nil {
		return nil, ledgerError("balance_of", err)
	}
	if balance.Cmp(price) < 0 {
		return nil, verificationFailed("insufficient_balance", "token balance is below the asset price")
	}

	ref := in.TransactionRef
	if ref == "" {
		ref = fmt.Sprintf("allowance:%s:%s", in.BuyerAddress, in.Asset.ID)
	}

	return &VerifiedPayment{
		Amount:         in.Asset.Price,
		TransactionRef: ref,
	}, nil
}
