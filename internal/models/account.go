// internal/models/account.go
package models

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Account struct {
	BaseModel
	Handle            string  `json:"handle" gorm:"uniqueIndex;size:50;not null"`
	Email             string  `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash      string  `json:"-" gorm:"size:255;not null"`
	DisplayName       string  `json:"display_name" gorm:"size:100"`
	Bio               string  `json:"bio" gorm:"type:text"`
	AvatarURL         string  `json:"avatar_url" gorm:"size:500"`
	LedgerAddress     *string `json:"ledger_address,omitempty" gorm:"size:128;uniqueIndex"`
	IsVerifiedCreator bool    `json:"is_verified_creator" gorm:"default:false"`
}

// AccountSummary is the creator info joined onto asset listings.
type AccountSummary struct {
	ID                uuid.UUID `json:"id"`
	Handle            string    `json:"handle"`
	DisplayName       string    `json:"display_name"`
	AvatarURL         string    `json:"avatar_url"`
	IsVerifiedCreator bool      `json:"is_verified_creator"`
}

func (a *Account) Summary() *AccountSummary {
	return &AccountSummary{
		ID:                a.ID,
		Handle:            a.Handle,
		DisplayName:       a.DisplayName,
		AvatarURL:         a.AvatarURL,
		IsVerifiedCreator: a.IsVerifiedCreator,
	}
}

func (a *Account) Address() string {
	if a.LedgerAddress == nil {
		return ""
	}
	return *a.LedgerAddress
}

func (a *Account) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hashedPassword)
	return nil
}

func (a *Account) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
}
