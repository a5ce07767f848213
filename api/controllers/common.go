package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/api/middleware"
	"github.com/lucasferreyra/seedmart-backend/api/validators"
	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/pagination"
)

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id claim")
	}
	return parsed, nil
}

func actorSellerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.SellerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller access required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid seller id claim")
	}
	return parsed, nil
}

func optionalSellerID(r *http.Request) *uuid.UUID {
	raw := middleware.SellerIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseListQuery(r *http.Request) (pagination.Params, orders.ListFilters, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, orders.ListFilters{}, err
	}
	params := pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}

	filters := orders.ListFilters{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return params, filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := r.URL.Query().Get("payment_status"); raw != "" {
		status := enums.PaymentStatus(raw)
		if !status.IsValid() {
			return params, filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
		}
		filters.PaymentStatus = &status
	}
	if filters.DateFrom, err = validators.ParseQueryDate(r, "date_from"); err != nil {
		return params, filters, err
	}
	if filters.DateTo, err = validators.ParseQueryDate(r, "date_to"); err != nil {
		return params, filters, err
	}
	return params, filters, nil
}

type orderItemResponse struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"product_id"`
	Size              string    `json:"size"`
	Quantity          int       `json:"quantity"`
	MRPPriceCents     int       `json:"mrp_price_cents"`
	SellingPriceCents int       `json:"selling_price_cents"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	UserID            uuid.UUID           `json:"user_id"`
	SellerID          uuid.UUID           `json:"seller_id"`
	PaymentOrderID    *uuid.UUID          `json:"payment_order_id,omitempty"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"payment_status"`
	PaymentID         *string             `json:"payment_id,omitempty"`
	TotalMRPCents     int                 `json:"total_mrp_cents"`
	TotalSellingCents int                 `json:"total_selling_cents"`
	TotalItems        int                 `json:"total_items"`
	ShippingAddress   *models.Address     `json:"shipping_address,omitempty"`
	Items             []orderItemResponse `json:"items"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			Size:              item.Size,
			Quantity:          item.Quantity,
			MRPPriceCents:     item.MRPPriceCents,
			SellingPriceCents: item.SellingPriceCents,
		})
	}
	return orderResponse{
		ID:                order.ID,
		UserID:            order.UserID,
		SellerID:          order.SellerID,
		PaymentOrderID:    order.PaymentOrderID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		PaymentID:         order.PaymentID,
		TotalMRPCents:     order.TotalMRPCents,
		TotalSellingCents: order.TotalSellingCents,
		TotalItems:        order.TotalItems,
		ShippingAddress:   order.ShippingAddress,
		Items:             items,
		CancelledAt:       order.CancelledAt,
		DeliveredAt:       order.DeliveredAt,
		CreatedAt:         order.CreatedAt,
	}
}

type paymentOrderResponse struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	AmountCents    int             `json:"amount_cents"`
	Status         string          `json:"status"`
	Provider       string          `json:"provider"`
	ExternalLinkID *string         `json:"external_link_id,omitempty"`
	PaymentLinkURL *string         `json:"payment_link_url,omitempty"`
	Orders         []orderResponse `json:"orders"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func newPaymentOrderResponse(po *models.PaymentOrder) paymentOrderResponse {
	memberOrders := make([]orderResponse, 0, len(po.Orders))
	for i := range po.Orders {
		memberOrders = append(memberOrders, newOrderResponse(&po.Orders[i]))
	}
	return paymentOrderResponse{
		ID:             po.ID,
		UserID:         po.UserID,
		AmountCents:    po.AmountCents,
		Status:         string(po.Status),
		Provider:       string(po.Provider),
		ExternalLinkID: po.ExternalLinkID,
		PaymentLinkURL: po.PaymentLinkURL,
		Orders:         memberOrders,
		PaidAt:         po.PaidAt,
		CreatedAt:      po.CreatedAt,
	}
}
