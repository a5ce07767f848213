package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucasferreyra/seedmart-backend/api/responses"
	"github.com/lucasferreyra/seedmart-backend/api/validators"
	cartsvc "github.com/lucasferreyra/seedmart-backend/internal/cart"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
)

// CartGet returns the caller's active cart with recomputed totals.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.GetActiveCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(summary))
	}
}

// CartUpsertItem adds a product line or replaces an existing line's quantity.
func CartUpsertItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body upsertCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var summary *cartsvc.Summary
		switch {
		case body.ItemID != nil:
			summary, err = svc.UpdateItemQuantity(r.Context(), userID, *body.ItemID, body.Quantity)
		case body.ProductID != nil:
			summary, err = svc.AddItem(r.Context(), userID, cartsvc.AddItemInput{
				ProductID: *body.ProductID,
				Size:      body.Size,
				Quantity:  body.Quantity,
			})
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "item_id or product_id is required")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(summary))
	}
}

// CartRemoveItem deletes one line from the active cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.RemoveItem(r.Context(), userID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(summary))
	}
}

type upsertCartItemRequest struct {
	ItemID    *uuid.UUID `json:"item_id" validate:"omitempty"`
	ProductID *uuid.UUID `json:"product_id" validate:"omitempty"`
	Size      string     `json:"size"`
	Quantity  int        `json:"quantity" validate:"min=0"`
}

type cartItemLineResponse struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"product_id"`
	SellerID          uuid.UUID `json:"seller_id"`
	Size              string    `json:"size"`
	Quantity          int       `json:"quantity"`
	MRPPriceCents     int       `json:"mrp_price_cents"`
	SellingPriceCents int       `json:"selling_price_cents"`
	CreatedAt         time.Time `json:"created_at"`
}

type cartResponse struct {
	ID                uuid.UUID              `json:"id"`
	Status            string                 `json:"status"`
	Items             []cartItemLineResponse `json:"items"`
	TotalMRPCents     int                    `json:"total_mrp_cents"`
	TotalSellingCents int                    `json:"total_selling_cents"`
	DiscountCents     int                    `json:"discount_cents"`
	DiscountPercent   decimal.Decimal        `json:"discount_percent"`
	TotalItems        int                    `json:"total_items"`
	CreatedAt         time.Time              `json:"created_at"`
}

func newCartResponse(summary *cartsvc.Summary) cartResponse {
	resp := cartResponse{
		TotalMRPCents:     summary.TotalMRPCents,
		TotalSellingCents: summary.TotalSellingCents,
		DiscountCents:     summary.DiscountCents,
		DiscountPercent:   summary.DiscountPercent,
		TotalItems:        summary.TotalItems,
	}
	if summary.Cart == nil {
		return resp
	}
	resp.ID = summary.Cart.ID
	resp.Status = string(summary.Cart.Status)
	resp.CreatedAt = summary.Cart.CreatedAt
	resp.Items = make([]cartItemLineResponse, 0, len(summary.Cart.Items))
	for _, item := range summary.Cart.Items {
		resp.Items = append(resp.Items, cartItemLineResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			SellerID:          item.SellerID,
			Size:              item.Size,
			Quantity:          item.Quantity,
			MRPPriceCents:     item.MRPPriceCents,
			SellingPriceCents: item.SellingPriceCents,
			CreatedAt:         item.CreatedAt,
		})
	}
	return resp
}
