package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
)

// Order is the seller-scoped commitment produced when a checkout splits the
// cart. One checkout creates one Order per seller represented in the cart.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	PaymentOrderID    *uuid.UUID          `gorm:"column:payment_order_id;type:uuid;index"`
	ShippingAddressID uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	ShippingAddress   *Address            `gorm:"foreignKey:ShippingAddressID"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentID         *string             `gorm:"column:payment_id"`
	TotalMRPCents     int                 `gorm:"column:total_mrp_cents;not null"`
	TotalSellingCents int                 `gorm:"column:total_selling_cents;not null"`
	TotalItems        int                 `gorm:"column:total_items;not null"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
