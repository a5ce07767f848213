package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/cart"
	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/payments"
	"github.com/lucasferreyra/seedmart-backend/internal/users"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/gateway"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
)

const sqliteUUID = `(lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-a' || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6))))`

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  full_name TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE addresses (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  line1 TEXT NOT NULL,
  line2 TEXT,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  postal_code TEXT NOT NULL,
  country TEXT NOT NULL DEFAULT 'IN',
  phone TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE user_addresses (
  user_id TEXT NOT NULL,
  address_id TEXT NOT NULL,
  PRIMARY KEY (user_id, address_id)
);`,
		`CREATE TABLE carts (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  size TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  mrp_price_cents INTEGER NOT NULL,
  selling_price_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE payment_orders (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
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
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
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
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  size TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  mrp_price_cents INTEGER NOT NULL,
  selling_price_cents INTEGER NOT NULL,
  created_at DATETIME
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
	linkCalls   int
	failLinks   int
	verifyOK    bool
	verifyCalls int
}

func (f *fakeGateway) Provider() enums.PaymentProvider { return f.provider }

func (f *fakeGateway) CreateLink(ctx context.Context, input gateway.CreateLinkInput) (*gateway.Link, error) {
	f.linkCalls++
	if f.failLinks > 0 {
		f.failLinks--
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment link request failed")
	}
	return &gateway.Link{
		URL:        "https://pay.test/" + input.PaymentOrderID.String(),
		ExternalID: "plink_" + input.PaymentOrderID.String(),
	}, nil
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, input gateway.VerifyInput) (bool, error) {
	f.verifyCalls++
	return f.verifyOK, nil
}

func newCheckoutService(t *testing.T, db *gorm.DB, gw *fakeGateway) Service {
	t.Helper()

	svc, err := NewService(
		testTx{db: db},
		cart.NewRepository(db),
		orders.NewRepository(db),
		payments.NewRepository(db),
		users.NewRepository(db),
		gateway.NewRegistry(gw),
		nil,
		logger.New(logger.Options{ServiceName: "test"}),
		time.Second,
	)
	require.NoError(t, err)
	return svc
}

func seedBuyer(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FullName:     "Asha Rodrigues",
		Role:         enums.UserRoleCustomer,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedCart(t *testing.T, db *gorm.DB, userID uuid.UUID, items []models.CartItem) *models.Cart {
	t.Helper()

	record := &models.Cart{ID: uuid.New(), UserID: userID, Status: enums.CartStatusActive}
	require.NoError(t, db.Create(record).Error)
	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = record.ID
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return record
}

func testAddress() AddressInput {
	return AddressInput{
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Phone:      "+919900000001",
	}
}

func TestExecuteSplitsCartBySeller(t *testing.T) {
	db := setupCheckoutTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay}
	svc := newCheckoutService(t, db, gw)

	user := seedBuyer(t, db)
	sellerA := uuid.New()
	sellerB := uuid.New()
	seedCart(t, db, user.ID, []models.CartItem{
		{ProductID: uuid.New(), SellerID: sellerA, Size: "M", Quantity: 2, MRPPriceCents: 300, SellingPriceCents: 250},
		{ProductID: uuid.New(), SellerID: sellerB, Size: "L", Quantity: 1, MRPPriceCents: 400, SellingPriceCents: 300},
	})

	result, err := svc.Execute(context.Background(), user.ID, Input{
		Provider: enums.PaymentProviderRazorpay,
		Address:  testAddress(),
	})
	require.NoError(t, err)

	require.NotNil(t, result.PaymentOrder)
	assert.Equal(t, 800, result.PaymentOrder.AmountCents)
	assert.Equal(t, enums.PaymentOrderStatusPending, result.PaymentOrder.Status)
	assert.NotEmpty(t, result.PaymentLinkURL)
	require.NotNil(t, result.PaymentOrder.ExternalLinkID)
	assert.Equal(t, 1, gw.linkCalls)

	var memberOrders []models.Order
	require.NoError(t, db.Preload("Items").Where("payment_order_id = ?", result.PaymentOrder.ID).Find(&memberOrders).Error)
	require.Len(t, memberOrders, 2)

	totals := map[uuid.UUID]int{}
	for _, order := range memberOrders {
		assert.Equal(t, enums.OrderStatusPending, order.Status)
		assert.Equal(t, user.ID, order.UserID)
		for _, item := range order.Items {
			assert.Equal(t, order.SellerID, item.SellerID)
		}
		totals[order.SellerID] = order.TotalSellingCents
	}
	assert.Equal(t, 500, totals[sellerA])
	assert.Equal(t, 300, totals[sellerB])

	// Both orders share the one persisted shipping address.
	var addressCount int64
	require.NoError(t, db.Model(&models.Address{}).Count(&addressCount).Error)
	assert.EqualValues(t, 1, addressCount)
	assert.Equal(t, memberOrders[0].ShippingAddressID, memberOrders[1].ShippingAddressID)

	var record models.Cart
	require.NoError(t, db.First(&record, "user_id = ?", user.ID).Error)
	assert.Equal(t, enums.CartStatusConverted, record.Status)
}

func TestExecuteRetriesAfterGatewayFailure(t *testing.T) {
	db := setupCheckoutTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay, failLinks: 1}
	svc := newCheckoutService(t, db, gw)

	user := seedBuyer(t, db)
	seedCart(t, db, user.ID, []models.CartItem{
		{ProductID: uuid.New(), SellerID: uuid.New(), Size: "M", Quantity: 1, MRPPriceCents: 200, SellingPriceCents: 150},
	})

	input := Input{Provider: enums.PaymentProviderRazorpay, Address: testAddress()}

	// First attempt: the split commits, then the link request fails.
	_, err := svc.Execute(context.Background(), user.ID, input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	var committed models.PaymentOrder
	require.NoError(t, db.First(&committed, "user_id = ?", user.ID).Error)
	assert.Equal(t, enums.PaymentOrderStatusPending, committed.Status)
	assert.Nil(t, committed.ExternalLinkID)

	var record models.Cart
	require.NoError(t, db.First(&record, "user_id = ?", user.ID).Error)
	assert.Equal(t, enums.CartStatusConverted, record.Status)

	// Retry: the cart is already converted, so the pending payment order is
	// resumed and the link requested again.
	result, err := svc.Execute(context.Background(), user.ID, input)
	require.NoError(t, err)
	assert.Equal(t, committed.ID, result.PaymentOrder.ID)
	assert.NotEmpty(t, result.PaymentLinkURL)
	assert.Equal(t, 2, gw.linkCalls)

	var poCount, orderCount int64
	require.NoError(t, db.Model(&models.PaymentOrder{}).Count(&poCount).Error)
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, poCount)
	assert.EqualValues(t, 1, orderCount)

	var stored models.PaymentOrder
	require.NoError(t, db.First(&stored, "id = ?", committed.ID).Error)
	require.NotNil(t, stored.ExternalLinkID)
	require.NotNil(t, stored.PaymentLinkURL)
	assert.Equal(t, result.PaymentLinkURL, *stored.PaymentLinkURL)

	// A further retry re-serves the stored link without another gateway call.
	again, err := svc.Execute(context.Background(), user.ID, input)
	require.NoError(t, err)
	assert.Equal(t, committed.ID, again.PaymentOrder.ID)
	assert.Equal(t, result.PaymentLinkURL, again.PaymentLinkURL)
	assert.Equal(t, 2, gw.linkCalls)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	db := setupCheckoutTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderRazorpay}
	svc := newCheckoutService(t, db, gw)

	user := seedBuyer(t, db)
	seedCart(t, db, user.ID, nil)

	_, err := svc.Execute(context.Background(), user.ID, Input{
		Provider: enums.PaymentProviderRazorpay,
		Address:  testAddress(),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestExecuteReusesSavedAddress(t *testing.T) {
	db := setupCheckoutTestDB(t)
	gw := &fakeGateway{provider: enums.PaymentProviderStripe}
	svc := newCheckoutService(t, db, gw)

	user := seedBuyer(t, db)
	saved := &models.Address{
		ID:         uuid.New(),
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
		Phone:      "+919900000001",
	}
	require.NoError(t, db.Create(saved).Error)
	require.NoError(t, db.Exec("INSERT INTO user_addresses (user_id, address_id) VALUES (?, ?)", user.ID, saved.ID).Error)

	seedCart(t, db, user.ID, []models.CartItem{
		{ProductID: uuid.New(), SellerID: uuid.New(), Size: "S", Quantity: 1, MRPPriceCents: 100, SellingPriceCents: 90},
	})

	result, err := svc.Execute(context.Background(), user.ID, Input{
		Provider: enums.PaymentProviderStripe,
		Address:  testAddress(),
	})
	require.NoError(t, err)

	var addressCount int64
	require.NoError(t, db.Model(&models.Address{}).Count(&addressCount).Error)
	assert.EqualValues(t, 1, addressCount)

	var memberOrders []models.Order
	require.NoError(t, db.Where("payment_order_id = ?", result.PaymentOrder.ID).Find(&memberOrders).Error)
	require.Len(t, memberOrders, 1)
	assert.Equal(t, saved.ID, memberOrders[0].ShippingAddressID)
}

func TestFingerprintIgnoresItemOrder(t *testing.T) {
	userID := uuid.New()
	a := models.CartItem{ProductID: uuid.New(), Size: "M", Quantity: 1, MRPPriceCents: 100, SellingPriceCents: 90}
	b := models.CartItem{ProductID: uuid.New(), Size: "L", Quantity: 2, MRPPriceCents: 200, SellingPriceCents: 150}
	record := &models.Cart{ID: uuid.New()}

	record.Items = []models.CartItem{a, b}
	first := fingerprint(userID, enums.PaymentProviderRazorpay, record)
	record.Items = []models.CartItem{b, a}
	second := fingerprint(userID, enums.PaymentProviderRazorpay, record)
	assert.Equal(t, first, second)

	record.Items = []models.CartItem{a}
	assert.NotEqual(t, first, fingerprint(userID, enums.PaymentProviderRazorpay, record))
}
