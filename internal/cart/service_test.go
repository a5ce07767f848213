package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

const sqliteUUID = `(lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-a' || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6))))`

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
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
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type stubProducts struct {
	byID map[uuid.UUID]*models.Product
}

func (s *stubProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func newCartService(t *testing.T, db *gorm.DB, products ...*models.Product) Service {
	t.Helper()

	stub := &stubProducts{byID: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		stub.byID[p.ID] = p
	}
	svc, err := NewService(NewRepository(db), stub)
	require.NoError(t, err)
	return svc
}

func testProduct(sellingCents, mrpCents int) *models.Product {
	return &models.Product{
		ID:                uuid.New(),
		SellerID:          uuid.New(),
		Title:             "Linen Kurta",
		Category:          "apparel",
		MRPPriceCents:     mrpCents,
		SellingPriceCents: sellingCents,
		Sizes:             "S,M,L",
		InStock:           true,
	}
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(150, 200)
	svc := newCartService(t, db, product)

	userID := uuid.New()
	summary, err := svc.AddItem(context.Background(), userID, AddItemInput{
		ProductID: product.ID,
		Size:      "M",
		Quantity:  2,
	})
	require.NoError(t, err)

	require.NotNil(t, summary.Cart)
	assert.Equal(t, userID, summary.Cart.UserID)
	assert.Equal(t, enums.CartStatusActive, summary.Cart.Status)
	require.Len(t, summary.Cart.Items, 1)
	assert.Equal(t, 2, summary.TotalItems)
	assert.Equal(t, 300, summary.TotalSellingCents)
	assert.Equal(t, 400, summary.TotalMRPCents)
	assert.Equal(t, 100, summary.DiscountCents)
	assert.Equal(t, "25", summary.DiscountPercent.String())

	// Item lines snapshot the price at add-time.
	item := summary.Cart.Items[0]
	assert.Equal(t, product.SellerID, item.SellerID)
	assert.Equal(t, 150, item.SellingPriceCents)
}

func TestAddItemFoldsSameProductAndSize(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(100, 100)
	svc := newCartService(t, db, product)

	userID := uuid.New()
	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Size: "M", Quantity: 1})
	require.NoError(t, err)
	summary, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Size: "M", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, summary.Cart.Items, 1)
	assert.Equal(t, 3, summary.Cart.Items[0].Quantity)

	// A different size opens a new line.
	summary, err = svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Size: "L", Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, summary.Cart.Items, 2)
}

func TestAddItemRejectsOutOfStock(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(100, 100)
	product.InStock = false
	svc := newCartService(t, db, product)

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: product.ID, Size: "M", Quantity: 1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestAddItemRejectsUnknownSize(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(100, 100)
	svc := newCartService(t, db, product)

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: product.ID, Size: "XXL", Quantity: 1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestAddItemRejectsUnknownProduct(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: uuid.New(), Size: "M", Quantity: 1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateItemQuantityZeroRemovesLine(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(100, 100)
	svc := newCartService(t, db, product)

	userID := uuid.New()
	summary, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Size: "M", Quantity: 2})
	require.NoError(t, err)
	itemID := summary.Cart.Items[0].ID

	summary, err = svc.UpdateItemQuantity(context.Background(), userID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, summary.Cart.Items)
	assert.Equal(t, 0, summary.TotalItems)
}

func TestUpdateItemQuantityForeignItem(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(100, 100)
	svc := newCartService(t, db, product)

	owner := uuid.New()
	summary, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Size: "M", Quantity: 1})
	require.NoError(t, err)

	// Another user's cart does not contain the line.
	_, err = svc.UpdateItemQuantity(context.Background(), uuid.New(), summary.Cart.Items[0].ID, 3)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRemoveItem(t *testing.T) {
	db := setupCartTestDB(t)
	product := testProduct(100, 100)
	svc := newCartService(t, db, product)

	userID := uuid.New()
	summary, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Size: "S", Quantity: 1})
	require.NoError(t, err)

	summary, err = svc.RemoveItem(context.Background(), userID, summary.Cart.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Cart.Items)
}

func TestGetActiveCartReturnsEmptyCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	summary, err := svc.GetActiveCart(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, summary.Cart)
	assert.Empty(t, summary.Cart.Items)
	assert.Equal(t, 0, summary.TotalSellingCents)
	assert.True(t, summary.DiscountPercent.IsZero())
}
