package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/transactions"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/gateway"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
	"github.com/lucasferreyra/seedmart-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SettleInput identifies one gateway confirmation callback.
type SettleInput struct {
	PaymentID     string
	PaymentLinkID string
}

// Service verifies gateway confirmations and settles payment orders.
type Service interface {
	Settle(ctx context.Context, input SettleInput) (*models.PaymentOrder, error)
	GetByLinkID(ctx context.Context, linkID string) (*models.PaymentOrder, error)
	GetForUser(ctx context.Context, userID, paymentOrderID uuid.UUID) (*models.PaymentOrder, error)
}

type service struct {
	tx             txRunner
	repo           Repository
	ordersRepo     orders.Repository
	txnsRepo       transactions.Repository
	sellersRepo    sellers.Repository
	gateways       *gateway.Registry
	metrics        *metrics.PaymentMetrics
	logg           *logger.Logger
	gatewayTimeout time.Duration
	now            func() time.Time
}

// NewService wires the settlement service with its dependencies.
func NewService(
	tx txRunner,
	repo Repository,
	ordersRepo orders.Repository,
	txnsRepo transactions.Repository,
	sellersRepo sellers.Repository,
	gateways *gateway.Registry,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
	gatewayTimeout time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if txnsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if sellersRepo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	if gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &service{
		tx:             tx,
		repo:           repo,
		ordersRepo:     ordersRepo,
		txnsRepo:       txnsRepo,
		sellersRepo:    sellersRepo,
		gateways:       gateways,
		metrics:        paymentMetrics,
		logg:           logg,
		gatewayTimeout: gatewayTimeout,
		now:            time.Now,
	}, nil
}

// Settle handles one confirmation callback. Verification happens outside the
// transaction; the status flip and the per-order fan-out commit atomically.
// Replays are absorbed: a payment order that is already paid settles nothing
// twice.
func (s *service) Settle(ctx context.Context, input SettleInput) (*models.PaymentOrder, error) {
	if input.PaymentID == "" || input.PaymentLinkID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id and payment link id are required")
	}

	po, err := s.repo.FindByExternalLinkID(ctx, input.PaymentLinkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
		}
		return nil, err
	}

	ctx = s.logg.WithPaymentOrderID(ctx, po.ID.String())
	provider := string(po.Provider)

	if !po.Status.IsPending() {
		s.logg.Info(ctx, "settlement replay absorbed")
		s.metrics.IncSettlement(provider, "replay")
		return po, nil
	}

	gw, err := s.gateways.For(po.Provider)
	if err != nil {
		return nil, err
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	ok, err := gw.VerifyPayment(verifyCtx, gateway.VerifyInput{
		PaymentID:     input.PaymentID,
		PaymentLinkID: input.PaymentLinkID,
	})
	if err != nil {
		s.metrics.IncSettlement(provider, "gateway_error")
		return nil, err
	}
	if !ok {
		s.metrics.IncSettlement(provider, "rejected")
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment is not captured")
	}

	settled := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		txnsRepo := s.txnsRepo.WithTx(tx)
		sellersRepo := s.sellersRepo.WithTx(tx)

		affected, err := repo.MarkPaid(ctx, po.ID, s.now())
		if err != nil {
			return err
		}
		if affected == 0 {
			// Lost the race with a concurrent callback.
			return nil
		}
		settled = true

		memberOrders, err := ordersRepo.FindByPaymentOrderID(ctx, po.ID)
		if err != nil {
			return err
		}

		sum := 0
		for _, order := range memberOrders {
			sum += order.TotalSellingCents
		}
		if sum != po.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInvariant, fmt.Sprintf(
				"payment order amount %d does not match member order totals %d", po.AmountCents, sum))
		}

		for _, order := range memberOrders {
			changed, err := ordersRepo.MarkSettled(ctx, order.ID, input.PaymentID)
			if err != nil {
				return err
			}
			if changed == 0 {
				// Order left the pending state before settlement, e.g.
				// cancelled by the buyer. It earns nothing.
				s.logg.Warn(ctx, fmt.Sprintf("order %s skipped during settlement", order.ID))
				continue
			}

			if err := txnsRepo.Create(ctx, &models.Transaction{
				OrderID:     order.ID,
				SellerID:    order.SellerID,
				CustomerID:  order.UserID,
				AmountCents: order.TotalSellingCents,
			}); err != nil {
				return err
			}

			if _, err := sellersRepo.EnsureReport(ctx, order.SellerID); err != nil {
				return err
			}
			if err := sellersRepo.ApplySettlement(ctx, order.SellerID, order.TotalSellingCents, len(order.Items)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.IncSettlement(provider, "error")
		return nil, err
	}

	if settled {
		s.logg.Info(ctx, "payment order settled")
		s.metrics.IncSettlement(provider, "settled")
	} else {
		s.metrics.IncSettlement(provider, "replay")
	}
	return s.repo.FindByID(ctx, po.ID)
}

func (s *service) GetByLinkID(ctx context.Context, linkID string) (*models.PaymentOrder, error) {
	if linkID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link id is required")
	}
	po, err := s.repo.FindByExternalLinkID(ctx, linkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
		}
		return nil, err
	}
	return po, nil
}

func (s *service) GetForUser(ctx context.Context, userID, paymentOrderID uuid.UUID) (*models.PaymentOrder, error) {
	if paymentOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment order id is required")
	}
	po, err := s.repo.FindByID(ctx, paymentOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
		}
		return nil, err
	}
	if po.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment order belongs to another user")
	}
	return po, nil
}
