package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

// StripeGateway settles payment orders through hosted Checkout Sessions. The
// session id plays the external-link role the callback later verifies.
type StripeGateway struct {
	api        *stripe.Client
	successURL string
	cancelURL  string
}

// NewStripe builds a gateway from the configured secret key and redirect URLs.
func NewStripe(cfg config.StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe api key is not configured")
	}
	return &StripeGateway{
		api:        stripe.NewClient(apiKey),
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}, nil
}

func (g *StripeGateway) Provider() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (g *StripeGateway) CreateLink(ctx context.Context, input CreateLinkInput) (*Link, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(input.Buyer.Email),
		SuccessURL:    stripe.String(fmt.Sprintf("%s/%s", g.successURL, input.PaymentOrderID)),
		CancelURL:     stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String("inr"),
					UnitAmount: stripe.Int64(int64(input.AmountCents)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("SeedMart order " + input.PaymentOrderID.String()),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("payment_order_id", input.PaymentOrderID.String())

	session, err := g.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe create checkout session failed")
	}
	if session.URL == "" || session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe returned an incomplete checkout session")
	}
	return &Link{URL: session.URL, ExternalID: session.ID}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, input VerifyInput) (bool, error) {
	session, err := g.api.V1CheckoutSessions.Retrieve(ctx, input.PaymentLinkID, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe retrieve checkout session failed")
	}
	return session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}
