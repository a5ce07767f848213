package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes buyer and seller order operations.
type Service interface {
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	GetOrderForActor(ctx context.Context, userID uuid.UUID, sellerID *uuid.UUID, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	AdvanceStatus(ctx context.Context, sellerID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	sellersRepo sellers.Repository
	now         func() time.Time
}

// NewService wires an orders service with its dependencies.
func NewService(tx txRunner, repo Repository, sellersRepo sellers.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if sellersRepo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		sellersRepo: sellersRepo,
		now:         time.Now,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

// GetOrderForActor returns the order when the caller is its buyer or the
// seller it is addressed to.
func (s *service) GetOrderForActor(ctx context.Context, userID uuid.UUID, sellerID *uuid.UUID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == userID {
		return order, nil
	}
	if sellerID != nil && order.SellerID == *sellerID {
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, params, filters)
}

func (s *service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	return s.repo.ListBySeller(ctx, sellerID, params, filters)
}

// Cancel withdraws a pending order on behalf of its buyer. The status flip
// and the seller counter updates commit together or not at all.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sellersRepo := s.sellersRepo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}

		affected, err := repo.CancelPending(ctx, order.ID, s.now())
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}

		if _, err := sellersRepo.EnsureReport(ctx, order.SellerID); err != nil {
			return err
		}
		if err := sellersRepo.ApplyCancellation(ctx, order.SellerID, order.TotalSellingCents); err != nil {
			return err
		}

		cancelled, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// AdvanceStatus moves a seller's order along the fulfilment path. Only the
// owning seller may progress it, and only along allowed transitions.
func (s *service) AdvanceStatus(ctx context.Context, sellerID, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")
	}
	switch target {
	case enums.OrderStatusConfirmed, enums.OrderStatusShipped, enums.OrderStatusDelivered:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status is not seller-assignable")
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	updates := map[string]any{}
	if target == enums.OrderStatusDelivered {
		updates["delivered_at"] = s.now()
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, target, updates); err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, order.ID)
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}
