package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a seller-owned listing. Prices are snapshots in minor units;
// cart and order rows copy them rather than referencing back.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Title             string    `gorm:"column:title;not null"`
	Category          string    `gorm:"column:category;not null"`
	MRPPriceCents     int       `gorm:"column:mrp_price_cents;not null"`
	SellingPriceCents int       `gorm:"column:selling_price_cents;not null"`
	Sizes             string    `gorm:"column:sizes"`
	InStock           bool      `gorm:"column:in_stock;not null;default:true"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
