package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lucasferreyra/seedmart-backend/api/responses"
	"github.com/lucasferreyra/seedmart-backend/api/validators"
	"github.com/lucasferreyra/seedmart-backend/internal/payments"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
	pkgredis "github.com/lucasferreyra/seedmart-backend/pkg/redis"
)

const settlementGuardTTL = 10 * time.Minute

// PaymentSettle handles the gateway confirmation callback. A short-lived
// redis guard absorbs duplicate deliveries before they reach the service;
// the database CAS inside the service remains the source of truth.
func PaymentSettle(svc payments.Service, store pkgredis.IdempotencyStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		paymentLinkID := strings.TrimSpace(r.URL.Query().Get("paymentLinkId"))
		if paymentID == "" || paymentLinkID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "paymentId and paymentLinkId are required"))
			return
		}

		var guardKey string
		if store != nil {
			guardKey = store.IdempotencyKey("settlement", paymentLinkID)
			acquired, err := store.SetNX(r.Context(), guardKey, paymentID, settlementGuardTTL)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settlement guard"))
				return
			}
			if !acquired {
				// Another delivery holds the guard. Answer success only when
				// the payment order is already settled; otherwise the gateway
				// must keep retrying, e.g. after a crash left the guard stuck.
				po, lookupErr := svc.GetByLinkID(r.Context(), paymentLinkID)
				if lookupErr == nil && po.Status == enums.PaymentOrderStatusPaid {
					if logg != nil {
						logg.Info(r.Context(), "duplicate settlement callback dropped")
					}
					responses.WriteSuccess(w, newPaymentOrderResponse(po))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "settlement in progress"))
				return
			}
		}

		po, err := svc.Settle(r.Context(), payments.SettleInput{
			PaymentID:     paymentID,
			PaymentLinkID: paymentLinkID,
		})
		if err != nil {
			// Release the guard so the gateway's retry can reach the service.
			if store != nil && guardKey != "" {
				if delErr := store.Del(r.Context(), guardKey); delErr != nil && logg != nil {
					logg.Error(r.Context(), "release settlement guard", delErr)
				}
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentOrderResponse(po))
	}
}

// PaymentOrderDetail returns one payment order with its member orders.
func PaymentOrderDetail(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentOrderID, err := validators.ParseUUIDParam(r, "paymentOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		po, err := svc.GetForUser(r.Context(), userID, paymentOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentOrderResponse(po))
	}
}
