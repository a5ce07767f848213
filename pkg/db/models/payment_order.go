package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
)

// PaymentOrder aggregates every order from one checkout into a single payment
// request. Its amount is a snapshot: it must equal the sum of the member
// orders' selling totals at creation time and is never re-derived.
type PaymentOrder struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents    int                      `gorm:"column:amount_cents;not null"`
	Status         enums.PaymentOrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Provider       enums.PaymentProvider    `gorm:"column:provider;type:text;not null"`
	ExternalLinkID *string                  `gorm:"column:external_link_id;uniqueIndex"`
	PaymentLinkURL *string                  `gorm:"column:payment_link_url"`
	IdempotencyKey string                   `gorm:"column:idempotency_key;not null;uniqueIndex"`
	Orders         []Order                  `gorm:"foreignKey:PaymentOrderID"`
	PaidAt         *time.Time               `gorm:"column:paid_at"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
