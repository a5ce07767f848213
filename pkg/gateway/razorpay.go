package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

// RazorpayGateway issues hosted payment links and verifies captured payments.
// The underlying SDK has no context support, so every call runs in a goroutine
// and is abandoned when the caller's context expires.
type RazorpayGateway struct {
	client      *razorpay.Client
	callbackURL string
}

// NewRazorpay builds a gateway from the configured key pair.
func NewRazorpay(cfg config.RazorpayConfig, callbackURL string) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "razorpay credentials are not configured")
	}
	return &RazorpayGateway{
		client:      razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		callbackURL: callbackURL,
	}, nil
}

func (g *RazorpayGateway) Provider() enums.PaymentProvider {
	return enums.PaymentProviderRazorpay
}

func (g *RazorpayGateway) CreateLink(ctx context.Context, input CreateLinkInput) (*Link, error) {
	data := map[string]interface{}{
		"amount":   input.AmountCents,
		"currency": "INR",
		"customer": map[string]interface{}{
			"name":  input.Buyer.Name,
			"email": input.Buyer.Email,
		},
		"notify": map[string]interface{}{
			"email": true,
		},
		"reminder_enable": true,
		"callback_url":    fmt.Sprintf("%s/%s", g.callbackURL, input.PaymentOrderID),
		"callback_method": "get",
		"notes": map[string]interface{}{
			"payment_order_id": input.PaymentOrderID.String(),
		},
	}

	body, err := g.call(ctx, "create payment link", func() (map[string]interface{}, error) {
		return g.client.PaymentLink.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	url, _ := body["short_url"].(string)
	id, _ := body["id"].(string)
	if url == "" || id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay returned an incomplete payment link")
	}
	return &Link{URL: url, ExternalID: id}, nil
}

func (g *RazorpayGateway) VerifyPayment(ctx context.Context, input VerifyInput) (bool, error) {
	body, err := g.call(ctx, "fetch payment", func() (map[string]interface{}, error) {
		return g.client.Payment.Fetch(input.PaymentID, nil, nil)
	})
	if err != nil {
		return false, err
	}
	status, _ := body["status"].(string)
	return status == "captured", nil
}

func (g *RazorpayGateway) call(ctx context.Context, op string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "razorpay "+op+" aborted")
	case res := <-done:
		if res.err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.err, "razorpay "+op+" failed")
		}
		return res.body, nil
	}
}
