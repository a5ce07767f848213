package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction records one settled order's funds movement between customer and
// seller. Immutable once created; the unique index on order_id is what makes
// settlement replay-safe at the storage layer.
type Transaction struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
