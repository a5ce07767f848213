package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/api/responses"
	"github.com/lucasferreyra/seedmart-backend/api/validators"
	ordersvc "github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/transactions"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
)

// SellerOrders lists orders addressed to the caller's seller.
func SellerOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, filters, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListSellerOrders(r.Context(), sellerID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// SellerOrderStatus progresses one of the seller's orders along the
// fulfilment path.
func SellerOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.AdvanceStatus(r.Context(), sellerID, orderID, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// SellerReport returns the caller's lifetime counters.
func SellerReport(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sellers service unavailable"))
			return
		}

		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.GetReport(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSellerReportResponse(report))
	}
}

// SellerTransactions lists the seller's settled transactions, newest first.
func SellerTransactions(repo transactions.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions repository unavailable"))
			return
		}

		sellerID, err := actorSellerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := repo.ListBySeller(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]transactionResponse, 0, len(txns))
		for _, txn := range txns {
			items = append(items, newTransactionResponse(txn))
		}
		responses.WriteSuccess(w, map[string]any{"transactions": items})
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type sellerReportResponse struct {
	SellerID           uuid.UUID `json:"seller_id"`
	TotalOrders        int       `json:"total_orders"`
	TotalEarningsCents int       `json:"total_earnings_cents"`
	TotalSales         int       `json:"total_sales"`
	CanceledOrders     int       `json:"canceled_orders"`
	TotalRefundsCents  int       `json:"total_refunds_cents"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func newSellerReportResponse(report *models.SellerReport) sellerReportResponse {
	return sellerReportResponse{
		SellerID:           report.SellerID,
		TotalOrders:        report.TotalOrders,
		TotalEarningsCents: report.TotalEarningsCents,
		TotalSales:         report.TotalSales,
		CanceledOrders:     report.CanceledOrders,
		TotalRefundsCents:  report.TotalRefundsCents,
		UpdatedAt:          report.UpdatedAt,
	}
}

type transactionResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	AmountCents int       `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTransactionResponse(txn models.Transaction) transactionResponse {
	return transactionResponse{
		ID:          txn.ID,
		OrderID:     txn.OrderID,
		SellerID:    txn.SellerID,
		CustomerID:  txn.CustomerID,
		AmountCents: txn.AmountCents,
		CreatedAt:   txn.CreatedAt,
	}
}
