package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

// Buyer carries the customer details providers attach to a payment request.
type Buyer struct {
	Name  string
	Email string
	Phone string
}

// CreateLinkInput is the uniform payment-request contract across providers.
type CreateLinkInput struct {
	Buyer          Buyer
	AmountCents    int
	PaymentOrderID uuid.UUID
}

// Link is what a provider hands back: a redirect URL plus the opaque external
// identifier the confirmation callback will later reference.
type Link struct {
	URL        string
	ExternalID string
}

// VerifyInput identifies one provider confirmation.
type VerifyInput struct {
	PaymentID     string
	PaymentLinkID string
}

// Gateway abstracts the two interchangeable payment providers. Calls are
// bounded by the caller's context; a timeout surfaces as a dependency error,
// never as success.
type Gateway interface {
	Provider() enums.PaymentProvider
	CreateLink(ctx context.Context, input CreateLinkInput) (*Link, error)
	VerifyPayment(ctx context.Context, input VerifyInput) (bool, error)
}

// Registry resolves a Gateway from the payment-method enum chosen at checkout.
type Registry struct {
	gateways map[enums.PaymentProvider]Gateway
}

// NewRegistry indexes the provided gateways by provider.
func NewRegistry(gateways ...Gateway) *Registry {
	indexed := make(map[enums.PaymentProvider]Gateway, len(gateways))
	for _, g := range gateways {
		if g == nil {
			continue
		}
		indexed[g.Provider()] = g
	}
	return &Registry{gateways: indexed}
}

// For returns the gateway registered for the provider.
func (r *Registry) For(provider enums.PaymentProvider) (Gateway, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry unavailable")
	}
	g, ok := r.gateways[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider")
	}
	return g, nil
}
