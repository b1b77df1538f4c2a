// internal/services/account_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

type AccountService struct {
	gateway store.Gateway
}

// UpdateProfileRequest only touches the fields that are present.
type UpdateProfileRequest struct {
	DisplayName   *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Bio           *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	AvatarURL     *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	LedgerAddress *string `json:"ledger_address,omitempty" validate:"omitempty,eth_addr"`
}

func NewAccountService(gateway store.Gateway) *AccountService {
	return &AccountService{gateway: gateway}
}

func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "account not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return account, nil
}

func (s *AccountService) GetPublicProfile(ctx context.Context, accountID uuid.UUID) (*models.AccountSummary, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.Summary(), nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, req *UpdateProfileRequest) (*models.Account, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		account.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		account.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		account.AvatarURL = *req.AvatarURL
	}
	if req.LedgerAddress != nil {
		if *req.LedgerAddress == "" {
			account.LedgerAddress = nil
		} else {
			// Stored lowercase so the unique index sees one wallet once.
			address := NormalizeBuyerID(*req.LedgerAddress)
			account.LedgerAddress = &address
		}
	}

	if err := s.gateway.UpdateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.New(apperrors.KindConflict, "ledger address is linked to another account")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return account, nil
}
