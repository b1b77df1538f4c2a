// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type AuthService struct {
	gateway store.Gateway
	cfg     *config.Config
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Handle        string `json:"handle" validate:"required,username"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,strong_password"`
	DisplayName   string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	LedgerAddress string `json:"ledger_address,omitempty" validate:"omitempty,eth_addr"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	Account      *models.Account `json:"account"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"` // in seconds
}

func NewAuthService(gateway store.Gateway, cfg *config.Config) *AuthService {
	return &AuthService{
		gateway: gateway,
		cfg:     cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	account := &models.Account{
		Handle:      req.Handle,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: req.DisplayName,
	}
	if account.DisplayName == "" {
		account.DisplayName = req.Handle
	}
	if req.LedgerAddress != "" {
		address := NormalizeBuyerID(req.LedgerAddress)
		account.LedgerAddress = &address
	}

	if err := account.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.gateway.CreateAccount(ctx, account); err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return nil, apperrors.New(apperrors.KindConflict, "account already exists").
				WithDetail("field", duplicateField(dup.Constraint))
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return s.issueTokens(account)
}

func duplicateField(constraint string) string {
	switch constraint {
	case store.ConstraintAccountHandle:
		return "handle"
	case store.ConstraintAccountEmail:
		return "email"
	case store.ConstraintAccountLedgerAddress:
		return "ledger_address"
	}
	return ""
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	account, err := s.gateway.GetAccountByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindUnauthorized, "invalid email or password")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := account.CheckPassword(req.Password); err != nil {
		return nil, apperrors.New(apperrors.KindUnauthorized, "invalid email or password")
	}

	return s.issueTokens(account)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	accountIDStr, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthorized, "invalid refresh token", err)
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnauthorized, "invalid account id in token", err)
	}

	account, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindUnauthorized, "account no longer exists")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return s.issueTokens(account)
}

func (s *AuthService) issueTokens(account *models.Account) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(
		account.ID,
		account.Handle,
		account.IsVerifiedCreator,
		s.cfg.JWT.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(account.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}
