package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/transactions"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/gateway"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE payment_orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  provider TEXT NOT NULL,
  external_link_id TEXT UNIQUE,
  payment_link_url TEXT,
  idempotency_key TEXT NOT NULL UNIQUE,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  payment_order_id TEXT,
  shipping_address_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_id TEXT,
  total_mrp_cents INTEGER NOT NULL,
  total_selling_cents INTEGER NOT NULL,
  total_items INTEGER NOT NULL,
  cancelled_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  size TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  mrp_price_cents INTEGER NOT NULL,
  selling_price_cents INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE transactions (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-a' || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6)))),
  order_id TEXT NOT NULL UNIQUE,
  seller_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE seller_reports (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-a' || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6)))),
  seller_id TEXT NOT NULL UNIQUE,
  total_orders INTEGER NOT NULL DEFAULT 0,
  total_earnings_cents INTEGER NOT NULL DEFAULT 0,
  total_sales INTEGER NOT NULL DEFAULT 0,
  canceled_orders INTEGER NOT NULL DEFAULT 0,
  total_refunds_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type testTx struct {
	db *gorm.DB
}

func (t testTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	provider    enums.PaymentProvider
	verifyOK    bool
	verifyCalls int
}

func (f *fakeGateway) Provider() enums.PaymentProvider { return f.provider }

func (f *fakeGateway) CreateLink(ctx context.Context, input gateway.CreateLinkInput) (*gateway.Link, error) {
	return &gateway.Link{URL: "https://pay.test/link", ExternalID: "plink_test"}, nil
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, input gateway.VerifyInput) (bool, error) {
	f.verifyCalls++
	return f.verifyOK, nil
}

func newSettlementService(t *testing.T, db *gorm.DB, gw *fakeGateway) Service {
	t.Helper()

	svc, err := NewService(
		testTx{db: db},
		NewRepository(db),
		orders.NewRepository(db),
		transactions.NewRepository(db),
		sellers.NewRepository(db),
		gateway.NewRegistry(gw),
		nil,
		logger.New(logger.Options{ServiceName: "test"}),
		time.Second,
	)
	require.NoError(t, err)
	return svc
}

func seedPaymentOrder(t *testing.T, db *gorm.DB, amountCents int, status enums.PaymentOrderStatus, linkID string) *models.PaymentOrder {
	t.Helper()

	po := &models.PaymentOrder{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		AmountCents:    amountCents,
		Status:         status,
		Provider:       enums.PaymentProviderRazorpay,
		ExternalLinkID: &linkID,
		IdempotencyKey: uuid.NewString(),
	}
	require.NoError(t, db.Create(po).Error)
	return po
}

func seedMemberOrder(t *testing.T, db *gorm.DB, po *models.PaymentOrder, sellerID uuid.UUID, sellingCents, itemLines int, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:                uuid.New(),
		UserID:            po.UserID,
		SellerID:          sellerID,
		PaymentOrderID:    &po.ID,
		ShippingAddressID: uuid.New(),
		Status:            status,
		PaymentStatus:     enums.PaymentStatusPending,
		TotalMRPCents:     sellingCents,
		TotalSellingCents: sellingCents,
		TotalItems:        itemLines,
	}
	require.NoError(t, db.Create(order).Error)
	for i := 0; i < itemLines; i++ {
		item := &models.OrderItem{
			ID:                uuid.New(),
			OrderID:           order.ID,
			ProductID:         uuid.New(),
			SellerID:          sellerID,
			Size:              "M",
			Quantity:          1,
			MRPPriceCents:     sellingCents / itemLines,
			SellingPriceCents: sellingCents / itemLines,
		}
		require.NoError(t, db.Create(item).Error)
	}
	return order
}

func TestSettleFansOutPerOrder(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 800, enums.PaymentOrderStatusPending, "plink_1")
	sellerA := uuid.New()
	sellerB := uuid.New()
	orderA := seedMemberOrder(t, db, po, sellerA, 500, 2, enums.OrderStatusPending)
	orderB := seedMemberOrder(t, db, po, sellerB, 300, 1, enums.OrderStatusPending)

	settled, err := svc.Settle(context.Background(), SettleInput{
		PaymentID:     "pay_1",
		PaymentLinkID: "plink_1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentOrderStatusPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)
	assert.Equal(t, 1, gw.verifyCalls)

	for _, id := range []uuid.UUID{orderA.ID, orderB.ID} {
		var order models.Order
		require.NoError(t, db.First(&order, "id = ?", id).Error)
		assert.Equal(t, enums.OrderStatusPlaced, order.Status)
		assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
		require.NotNil(t, order.PaymentID)
		assert.Equal(t, "pay_1", *order.PaymentID)
	}

	var txns []models.Transaction
	require.NoError(t, db.Order("amount_cents DESC").Find(&txns).Error)
	require.Len(t, txns, 2)
	assert.Equal(t, orderA.ID, txns[0].OrderID)
	assert.Equal(t, 500, txns[0].AmountCents)
	assert.Equal(t, po.UserID, txns[0].CustomerID)

	var report models.SellerReport
	require.NoError(t, db.First(&report, "seller_id = ?", sellerA).Error)
	assert.Equal(t, 1, report.TotalOrders)
	assert.Equal(t, 500, report.TotalEarningsCents)
	assert.Equal(t, 2, report.TotalSales)
}

func TestSettleReplayAbsorbed(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 300, enums.PaymentOrderStatusPaid, "plink_2")
	seedMemberOrder(t, db, po, uuid.New(), 300, 1, enums.OrderStatusPlaced)

	settled, err := svc.Settle(context.Background(), SettleInput{
		PaymentID:     "pay_2",
		PaymentLinkID: "plink_2",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentOrderStatusPaid, settled.Status)

	// A paid order never reaches the gateway again and settles nothing twice.
	assert.Equal(t, 0, gw.verifyCalls)
	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	assert.EqualValues(t, 0, txnCount)
}

func TestSettleRejectedVerificationLeavesOrderPending(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: false}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 300, enums.PaymentOrderStatusPending, "plink_3")
	seedMemberOrder(t, db, po, uuid.New(), 300, 1, enums.OrderStatusPending)

	_, err := svc.Settle(context.Background(), SettleInput{
		PaymentID:     "pay_3",
		PaymentLinkID: "plink_3",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentVerification, typed.Code())

	var reloaded models.PaymentOrder
	require.NoError(t, db.First(&reloaded, "id = ?", po.ID).Error)
	assert.Equal(t, enums.PaymentOrderStatusPending, reloaded.Status)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	assert.EqualValues(t, 0, txnCount)
}

func TestSettleSkipsCancelledMemberOrder(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 800, enums.PaymentOrderStatusPending, "plink_4")
	sellerKept := uuid.New()
	sellerCancelled := uuid.New()
	kept := seedMemberOrder(t, db, po, sellerKept, 500, 1, enums.OrderStatusPending)
	seedMemberOrder(t, db, po, sellerCancelled, 300, 1, enums.OrderStatusCancelled)

	_, err := svc.Settle(context.Background(), SettleInput{
		PaymentID:     "pay_4",
		PaymentLinkID: "plink_4",
	})
	require.NoError(t, err)

	var txns []models.Transaction
	require.NoError(t, db.Find(&txns).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, kept.ID, txns[0].OrderID)

	// The cancelled seller earns nothing from this settlement.
	var reportCount int64
	require.NoError(t, db.Model(&models.SellerReport{}).Where("seller_id = ?", sellerCancelled).Count(&reportCount).Error)
	assert.EqualValues(t, 0, reportCount)
}

func TestSettleAmountMismatchRollsBack(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 900, enums.PaymentOrderStatusPending, "plink_5")
	seedMemberOrder(t, db, po, uuid.New(), 500, 1, enums.OrderStatusPending)

	_, err := svc.Settle(context.Background(), SettleInput{
		PaymentID:     "pay_5",
		PaymentLinkID: "plink_5",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvariant, typed.Code())

	// The status flip rolled back with the rest of the transaction.
	var reloaded models.PaymentOrder
	require.NoError(t, db.First(&reloaded, "id = ?", po.ID).Error)
	assert.Equal(t, enums.PaymentOrderStatusPending, reloaded.Status)
}

func TestSettleUnknownLink(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	_, err := svc.Settle(context.Background(), SettleInput{
		PaymentID:     "pay_x",
		PaymentLinkID: "plink_missing",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetByLinkID(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 100, enums.PaymentOrderStatusPending, "plink_7")

	got, err := svc.GetByLinkID(context.Background(), "plink_7")
	require.NoError(t, err)
	assert.Equal(t, po.ID, got.ID)

	_, err = svc.GetByLinkID(context.Background(), "plink_missing")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetForUserEnforcesOwnership(t *testing.T) {
	db := setupSettlementTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, verifyOK: true}
	svc := newSettlementService(t, db, gw)

	po := seedPaymentOrder(t, db, 100, enums.PaymentOrderStatusPending, "plink_6")

	got, err := svc.GetForUser(context.Background(), po.UserID, po.ID)
	require.NoError(t, err)
	assert.Equal(t, po.ID, got.ID)

	_, err = svc.GetForUser(context.Background(), uuid.New(), po.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}
