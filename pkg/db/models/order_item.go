package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is an immutable snapshot of a cart item at order-creation time.
// Its seller always matches the parent order's seller.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SellerID          uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Size              string    `gorm:"column:size;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	MRPPriceCents     int       `gorm:"column:mrp_price_cents;not null"`
	SellingPriceCents int       `gorm:"column:selling_price_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
