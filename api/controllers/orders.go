package controllers

import (
	"net/http"

	"github.com/lucasferreyra/seedmart-backend/api/responses"
	"github.com/lucasferreyra/seedmart-backend/api/validators"
	checkoutsvc "github.com/lucasferreyra/seedmart-backend/internal/checkout"
	ordersvc "github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
)

// Checkout submits the caller's active cart: splits it into per-seller orders
// and returns the aggregated payment link.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := enums.ParsePaymentProvider(r.URL.Query().Get("payment_method"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, checkoutsvc.Input{
			Provider: provider,
			Address: checkoutsvc.AddressInput{
				Line1:      body.Address.Line1,
				Line2:      body.Address.Line2,
				City:       body.Address.City,
				State:      body.Address.State,
				PostalCode: body.Address.PostalCode,
				Country:    body.Address.Country,
				Phone:      body.Address.Phone,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// OrdersList returns the caller's order history, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, filters, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUserOrders(r.Context(), userID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns one order for its buyer or the seller it targets.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrderForActor(r.Context(), userID, optionalSellerID(r), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderCancel withdraws a pending order on behalf of its buyer.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type checkoutRequest struct {
	Address checkoutAddressPayload `json:"address" validate:"required"`
}

type checkoutAddressPayload struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone" validate:"required"`
}

type checkoutResponse struct {
	PaymentOrder   paymentOrderResponse `json:"payment_order"`
	Orders         []orderResponse      `json:"orders"`
	PaymentLinkURL string               `json:"payment_link_url,omitempty"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	resp := checkoutResponse{PaymentLinkURL: result.PaymentLinkURL}
	if result.PaymentOrder != nil {
		resp.PaymentOrder = newPaymentOrderResponse(result.PaymentOrder)
	}
	memberOrders := result.Orders
	if len(memberOrders) == 0 && result.PaymentOrder != nil {
		memberOrders = result.PaymentOrder.Orders
	}
	resp.Orders = make([]orderResponse, 0, len(memberOrders))
	for i := range memberOrders {
		resp.Orders = append(resp.Orders, newOrderResponse(&memberOrders[i]))
	}
	return resp
}
