package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/users"
	pkgAuth "github.com/lucasferreyra/seedmart-backend/pkg/auth"
	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

const sqliteUUID = `(lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-a' || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6))))`

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		`CREATE TABLE sellers (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  owner_user_id TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  email TEXT NOT NULL,
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

func newAuthService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(testTx{db: db}, users.NewRepository(db), sellers.NewRepository(db), config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "seedmart-test",
		ExpirationMinutes: 30,
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterCustomer(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db)

	session, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "Asha@Example.com",
		Password: "correct-horse",
		FullName: "Asha Rodrigues",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "asha@example.com", session.User.Email)
	assert.Equal(t, enums.UserRoleCustomer, session.User.Role)

	// No seller record is created for a customer signup.
	var sellerCount int64
	require.NoError(t, db.Model(&models.Seller{}).Count(&sellerCount).Error)
	assert.EqualValues(t, 0, sellerCount)
}

func TestRegisterSellerCreatesSellerRecord(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db)

	session, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "vendor@example.com",
		Password: "correct-horse",
		FullName: "Vendor One",
		Role:     "seller",
	})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "seedmart-test",
		ExpirationMinutes: 30,
	}, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleSeller, claims.Role)
	require.NotNil(t, claims.SellerID)

	var seller models.Seller
	require.NoError(t, db.First(&seller, "owner_user_id = ?", session.User.ID).Error)
	assert.Equal(t, *claims.SellerID, seller.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db)

	req := RegisterRequest{Email: "dup@example.com", Password: "correct-horse", FullName: "First"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "root@example.com",
		Password: "correct-horse",
		FullName: "Root",
		Role:     "admin",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestLogin(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := newAuthService(t, db)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "asha@example.com",
		Password: "correct-horse",
		FullName: "Asha Rodrigues",
	})
	require.NoError(t, err)

	session, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ASHA@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "asha@example.com",
		Password: "wrong-horse",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct-horse",
	})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}
