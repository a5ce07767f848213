package sellers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
)

// Repository manages sellers and their lifetime report counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, seller *models.Seller) error
	FindByOwnerUserID(ctx context.Context, ownerUserID uuid.UUID) (*models.Seller, error)
	EnsureReport(ctx context.Context, sellerID uuid.UUID) (*models.SellerReport, error)
	ApplySettlement(ctx context.Context, sellerID uuid.UUID, earningsCents, unitsSold int) error
	ApplyCancellation(ctx context.Context, sellerID uuid.UUID, refundCents int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sellers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, seller *models.Seller) error {
	return r.db.WithContext(ctx).Create(seller).Error
}

func (r *repository) FindByOwnerUserID(ctx context.Context, ownerUserID uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).First(&seller, "owner_user_id = ?", ownerUserID).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

// EnsureReport lazily creates the seller's report row on first use.
func (r *repository) EnsureReport(ctx context.Context, sellerID uuid.UUID) (*models.SellerReport, error) {
	var report models.SellerReport
	err := r.db.WithContext(ctx).
		Where(models.SellerReport{SellerID: sellerID}).
		FirstOrCreate(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ApplySettlement folds one settled order into the seller's counters. The
// increments run as a single SQL update so concurrent settlements and
// cancellations never clobber each other.
func (r *repository) ApplySettlement(ctx context.Context, sellerID uuid.UUID, earningsCents, unitsSold int) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerReport{}).
		Where("seller_id = ?", sellerID).
		UpdateColumns(map[string]any{
			"total_orders":         gorm.Expr("total_orders + 1"),
			"total_earnings_cents": gorm.Expr("total_earnings_cents + ?", earningsCents),
			"total_sales":          gorm.Expr("total_sales + ?", unitsSold),
		}).Error
}

// ApplyCancellation folds one cancelled order into the seller's counters.
func (r *repository) ApplyCancellation(ctx context.Context, sellerID uuid.UUID, refundCents int) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerReport{}).
		Where("seller_id = ?", sellerID).
		UpdateColumns(map[string]any{
			"canceled_orders":     gorm.Expr("canceled_orders + 1"),
			"total_refunds_cents": gorm.Expr("total_refunds_cents + ?", refundCents),
		}).Error
}
