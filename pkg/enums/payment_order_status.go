package enums

// PaymentOrderStatus tracks the aggregated payment request for one checkout.
type PaymentOrderStatus string

const (
	PaymentOrderStatusPending PaymentOrderStatus = "pending"
	PaymentOrderStatusPaid    PaymentOrderStatus = "paid"
	PaymentOrderStatusExpired PaymentOrderStatus = "expired"
	PaymentOrderStatusFailed  PaymentOrderStatus = "failed"
)

// String implements fmt.Stringer.
func (p PaymentOrderStatus) String() string {
	return string(p)
}

// IsPending reports whether the payment order can still settle or expire.
func (p PaymentOrderStatus) IsPending() bool {
	return p == PaymentOrderStatusPending
}

// IsValid reports whether the value is a known PaymentOrderStatus.
func (p PaymentOrderStatus) IsValid() bool {
	switch p {
	case PaymentOrderStatusPending, PaymentOrderStatusPaid, PaymentOrderStatusExpired, PaymentOrderStatusFailed:
		return true
	}
	return false
}
