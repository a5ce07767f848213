package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

// productFinder is the slice of the products repo the cart needs.
type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Summary is the computed view of a cart. Totals are derived from the items
// on every read and never persisted.
type Summary struct {
	Cart              *models.Cart    `json:"cart"`
	TotalMRPCents     int             `json:"total_mrp_cents"`
	TotalSellingCents int             `json:"total_selling_cents"`
	DiscountCents     int             `json:"discount_cents"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	TotalItems        int             `json:"total_items"`
}

// AddItemInput captures one add-to-cart request.
type AddItemInput struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// Service exposes the cart operations for the authenticated user.
type Service interface {
	GetActiveCart(ctx context.Context, userID uuid.UUID) (*Summary, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*Summary, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Summary, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Summary, error)
}

type service struct {
	repo     Repository
	products productFinder
}

// NewService wires a cart service with its dependencies.
func NewService(repo Repository, products productFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) GetActiveCart(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	cart, err := s.ensureActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(cart), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*Summary, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if !product.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}
	size := strings.TrimSpace(input.Size)
	if err := validateSize(product, size); err != nil {
		return nil, err
	}

	cart, err := s.ensureActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Same product and size folds into the existing line.
	existing, err := s.repo.FindItemByProductAndSize(ctx, cart.ID, product.ID, size)
	switch {
	case err == nil:
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+input.Quantity); err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := &models.CartItem{
			CartID:            cart.ID,
			ProductID:         product.ID,
			SellerID:          product.SellerID,
			Size:              size,
			Quantity:          input.Quantity,
			MRPPriceCents:     product.MRPPriceCents,
			SellingPriceCents: product.SellingPriceCents,
		}
		if err := s.repo.AddItem(ctx, item); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.reload(ctx, cart.ID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Summary, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	cart, err := s.ensureActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, err
	}

	// Quantity zero removes the line.
	if quantity == 0 {
		if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
			return nil, err
		}
	} else if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, err
	}

	return s.reload(ctx, cart.ID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Summary, error) {
	cart, err := s.ensureActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

func (s *service) ensureActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cart, err := s.repo.FindActiveByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &models.Cart{UserID: userID}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*Summary, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return Summarize(cart), nil
}

// Summarize recomputes cart totals from its items.
func Summarize(cart *models.Cart) *Summary {
	summary := &Summary{Cart: cart}
	if cart == nil {
		return summary
	}
	for _, item := range cart.Items {
		summary.TotalMRPCents += item.MRPPriceCents * item.Quantity
		summary.TotalSellingCents += item.SellingPriceCents * item.Quantity
		summary.TotalItems += item.Quantity
	}
	summary.DiscountCents = summary.TotalMRPCents - summary.TotalSellingCents
	if summary.TotalMRPCents > 0 {
		summary.DiscountPercent = decimal.NewFromInt(int64(summary.DiscountCents)).
			Div(decimal.NewFromInt(int64(summary.TotalMRPCents))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return summary
}

func validateSize(product *models.Product, size string) error {
	if product.Sizes == "" {
		return nil
	}
	for _, s := range strings.Split(product.Sizes, ",") {
		if strings.EqualFold(strings.TrimSpace(s), size) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "size is not offered for this product")
}
