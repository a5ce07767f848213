package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the order lists.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Summary exposes the aggregated fields returned in order lists.
type Summary struct {
	ID                uuid.UUID           `json:"id"`
	SellerID          uuid.UUID           `json:"seller_id"`
	UserID            uuid.UUID           `json:"user_id"`
	CreatedAt         time.Time           `json:"created_at"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	TotalSellingCents int                 `json:"total_selling_cents"`
	TotalMRPCents     int                 `json:"total_mrp_cents"`
	TotalItems        int                 `json:"total_items"`
}

// List wraps the paginated orders plus the next page cursor.
type List struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
