// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type Monetization string

const (
	MonetizationFree         Monetization = "free"
	MonetizationPayPerView   Monetization = "pay-per-view"
	MonetizationSubscription Monetization = "subscription"
)

func (m Monetization) Valid() bool {
	switch m {
	case MonetizationFree, MonetizationPayPerView, MonetizationSubscription:
		return true
	}
	return false
}

type PaymentMethod string

const (
	// PaymentMethodLedger verifies a single confirmed transfer on the ledger.
	PaymentMethodLedger PaymentMethod = "ledger"
	// PaymentMethodToken verifies a standing balance/allowance on the price token.
	PaymentMethodToken PaymentMethod = "token"
	// PaymentMethodCard verifies a Stripe PaymentIntent.
	PaymentMethodCard PaymentMethod = "card"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentMethodLedger, PaymentMethodToken, PaymentMethodCard:
		return true
	}
	return false
}
