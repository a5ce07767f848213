package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
)

// Cart is a user's in-progress selection. Totals are never stored; they are
// recomputed from the items on every read, so the cart is not a pricing
// source once orders exist.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
