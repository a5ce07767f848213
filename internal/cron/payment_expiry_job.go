package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/payments"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
)

const (
	defaultPendingTTL = 24 * time.Hour
	defaultBatchSize  = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentExpiryJobParams configure the stale payment order sweeper.
type PaymentExpiryJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	PaymentsRepo payments.Repository
	OrdersRepo   orders.Repository
	PendingTTL   time.Duration
	BatchSize    int
}

// NewPaymentExpiryJob builds the cron job that expires payment orders nobody
// ever paid and releases their member orders.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PaymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &paymentExpiryJob{
		logg:         params.Logger,
		db:           params.DB,
		paymentsRepo: params.PaymentsRepo,
		ordersRepo:   params.OrdersRepo,
		pendingTTL:   ttl,
		batchSize:    batch,
		now:          time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg         *logger.Logger
	db           txRunner
	paymentsRepo payments.Repository
	ordersRepo   orders.Repository
	pendingTTL   time.Duration
	batchSize    int
	now          func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-order-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	stale, err := j.paymentsRepo.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale payment orders: %w", err)
	}

	var errs []error
	expired := 0
	for _, po := range stale {
		if err := j.expire(ctx, po); err != nil {
			errs = append(errs, fmt.Errorf("expire payment order %s: %w", po.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired, "cutoff": cutoff})
	j.logg.Info(logCtx, "payment order expiry loop complete")
	return multierr.Combine(errs...)
}

// expire flips one payment order to expired and cancels its still-pending
// member orders. Seller counters stay untouched: the orders never earned.
func (j *paymentExpiryJob) expire(ctx context.Context, po models.PaymentOrder) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsRepo := j.paymentsRepo.WithTx(tx)
		ordersRepo := j.ordersRepo.WithTx(tx)

		affected, err := paymentsRepo.MarkExpired(ctx, po.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			// Settled or expired since the sweep query ran.
			return nil
		}

		memberOrders, err := ordersRepo.FindByPaymentOrderID(ctx, po.ID)
		if err != nil {
			return err
		}
		at := j.now().UTC()
		for _, order := range memberOrders {
			if _, err := ordersRepo.CancelPending(ctx, order.ID, at); err != nil {
				return err
			}
		}
		return nil
	})
}
