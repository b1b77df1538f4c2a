// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is a permanent entitlement of one buyer to one asset. Rows are
// never updated or deleted, so there is no UpdatedAt/DeletedAt.
type Purchase struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BuyerID        string          `json:"buyer_id" gorm:"size:128;not null;uniqueIndex:idx_purchases_buyer_asset"`
	AssetID        uuid.UUID       `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex:idx_purchases_buyer_asset;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(36,6);not null"`
	PaymentMethod  PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null;uniqueIndex:idx_purchases_method_ref"`
	TransactionRef string          `json:"transaction_ref" gorm:"size:255;not null;uniqueIndex:idx_purchases_method_ref"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Subscription struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SubscriberID string     `json:"subscriber_id" gorm:"size:128;not null;index"`
	CreatorID    uuid.UUID  `json:"creator_id" gorm:"type:uuid;not null;index"`
	Active       bool       `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}
