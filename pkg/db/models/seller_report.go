package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerReport keeps a seller's lifetime counters. It is the only row in the
// pipeline with concurrent writers (settlement vs cancellation), so every
// mutation goes through atomic SQL increments, never read-modify-write.
type SellerReport struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID           uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex"`
	TotalOrders        int       `gorm:"column:total_orders;not null;default:0"`
	TotalEarningsCents int       `gorm:"column:total_earnings_cents;not null;default:0"`
	TotalSales         int       `gorm:"column:total_sales;not null;default:0"`
	CanceledOrders     int       `gorm:"column:canceled_orders;not null;default:0"`
	TotalRefundsCents  int       `gorm:"column:total_refunds_cents;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
