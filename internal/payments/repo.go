package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
)

// Repository manages payment order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, po *models.PaymentOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)
	FindByExternalLinkID(ctx context.Context, linkID string) (*models.PaymentOrder, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentOrder, error)
	FindLatestPendingByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentOrder, error)
	SetExternalLink(ctx context.Context, id uuid.UUID, linkID, url string) error
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentOrder, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, po *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Preload("Orders.Items").
		First(&po, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) FindByExternalLinkID(ctx context.Context, linkID string) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Preload("Orders.Items").
		First(&po, "external_link_id = ?", linkID).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Preload("Orders").
		First(&po, "idempotency_key = ?", key).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) FindLatestPendingByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentOrder, error) {
	var po models.PaymentOrder
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("user_id = ? AND status = ?", userID, enums.PaymentOrderStatusPending).
		Order("created_at DESC").
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) SetExternalLink(ctx context.Context, id uuid.UUID, linkID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"external_link_id": linkID,
			"payment_link_url": url,
		}).Error
}

// MarkPaid promotes a pending payment order to paid. The rows-affected count
// is the settlement pipeline's replay detector: zero means another callback
// already won.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, enums.PaymentOrderStatusPending).
		UpdateColumns(map[string]any{
			"status":  enums.PaymentOrderStatusPaid,
			"paid_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentOrder, error) {
	var rows []models.PaymentOrder
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentOrderStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, enums.PaymentOrderStatusPending).
		UpdateColumn("status", enums.PaymentOrderStatusExpired)
	return res.RowsAffected, res.Error
}
