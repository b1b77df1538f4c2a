// internal/models/asset.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Asset struct {
	BaseModel
	CreatorID       uuid.UUID       `json:"creator_id" gorm:"type:uuid;not null;index"`
	Title           string          `json:"title" gorm:"size:255;not null"`
	Description     string          `json:"description" gorm:"type:text"`
	Category        string          `json:"category" gorm:"size:100;index"`
	Tags            pq.StringArray  `json:"tags" gorm:"type:text[]"`
	ThumbnailURL    string          `json:"thumbnail_url" gorm:"size:500"`
	DurationSeconds int             `json:"duration_seconds" gorm:"default:0"`
	Monetization    Monetization    `json:"monetization" gorm:"type:varchar(20);not null;default:'free'"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(36,6);not null;default:0"`
	ContentLocator  string          `json:"content_locator" gorm:"size:1024"`
	StorageProof    *StorageProof   `json:"storage_proof" gorm:"type:jsonb"`
	ViewCount       int64           `json:"view_count" gorm:"default:0"`
}

// IsPriced reports whether access requires a purchase or subscription.
func (a *Asset) IsPriced() bool {
	return a.Monetization != MonetizationFree && a.Price.IsPositive()
}

// AssetWithCreator is the listing/detail projection.
type AssetWithCreator struct {
	Asset
	Creator *AccountSummary `json:"creator,omitempty"`
}

// StorageProof describes where asset bytes were committed and how to check them.
type StorageProof struct {
	Backend    string    `json:"backend"`
	ContentID  string    `json:"content_id"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	Commitment string    `json:"commitment,omitempty"`
	StoredAt   time.Time `json:"stored_at"`
}

func (p StorageProof) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *StorageProof) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("storage proof: unsupported scan type")
	}
	return json.Unmarshal(data, p)
}
