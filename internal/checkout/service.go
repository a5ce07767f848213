package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/cart"
	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/payments"
	"github.com/lucasferreyra/seedmart-backend/internal/users"
	"github.com/lucasferreyra/seedmart-backend/pkg/db"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/gateway"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
	"github.com/lucasferreyra/seedmart-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddressInput is the shipping destination supplied at checkout.
type AddressInput struct {
	Line1      string
	Line2      *string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Input captures one checkout request.
type Input struct {
	Provider enums.PaymentProvider
	Address  AddressInput
}

// Result is what a successful checkout hands back to the controller.
type Result struct {
	PaymentOrder   *models.PaymentOrder `json:"payment_order"`
	Orders         []models.Order       `json:"orders"`
	PaymentLinkURL string               `json:"payment_link_url"`
}

// Service executes checkout orchestration: cart split, payment order
// aggregation and the gateway link request.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	tx             txRunner
	cartRepo       cart.Repository
	ordersRepo     orders.Repository
	paymentsRepo   payments.Repository
	usersRepo      *users.Repository
	gateways       *gateway.Registry
	metrics        *metrics.PaymentMetrics
	logg           *logger.Logger
	gatewayTimeout time.Duration
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	ordersRepo orders.Repository,
	paymentsRepo payments.Repository,
	usersRepo *users.Repository,
	gateways *gateway.Registry,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
	gatewayTimeout time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if paymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
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
		cartRepo:       cartRepo,
		ordersRepo:     ordersRepo,
		paymentsRepo:   paymentsRepo,
		usersRepo:      usersRepo,
		gateways:       gateways,
		metrics:        paymentMetrics,
		logg:           logg,
		gatewayTimeout: gatewayTimeout,
	}, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider")
	}
	if err := validateAddress(input.Address); err != nil {
		return nil, err
	}

	gw, err := s.gateways.For(input.Provider)
	if err != nil {
		return nil, err
	}

	user, err := s.usersRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, err
	}

	record, err := s.cartRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.resumePending(ctx, user, input.Address)
		}
		return nil, err
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	key := fingerprint(userID, input.Provider, record)
	if existing, err := s.paymentsRepo.FindByIdempotencyKey(ctx, key); err == nil {
		s.metrics.IncCheckout(string(input.Provider), "replay")
		return s.resultWithLink(ctx, gw, user, input.Address, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, userID.String())

	var po *models.PaymentOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		paymentsRepo := s.paymentsRepo.WithTx(tx)
		usersRepo := s.usersRepo.WithTx(tx)

		changed, err := cartRepo.MarkConverted(ctx, record.ID)
		if err != nil {
			return err
		}
		if changed == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart already processed")
		}

		address, err := resolveAddress(ctx, usersRepo, userID, input.Address)
		if err != nil {
			return err
		}

		groups := splitBySeller(record.Items)
		amount := 0
		for _, group := range groups {
			amount += group.totalSellingCents
		}

		po = &models.PaymentOrder{
			UserID:         userID,
			AmountCents:    amount,
			Provider:       input.Provider,
			IdempotencyKey: key,
		}
		if err := paymentsRepo.Create(ctx, po); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "checkout already in flight")
			}
			return err
		}

		for _, group := range groups {
			order := &models.Order{
				UserID:            userID,
				SellerID:          group.sellerID,
				PaymentOrderID:    &po.ID,
				ShippingAddressID: address.ID,
				TotalMRPCents:     group.totalMRPCents,
				TotalSellingCents: group.totalSellingCents,
				TotalItems:        group.totalItems,
				Items:             group.items,
			}
			if _, err := ordersRepo.Create(ctx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.IncCheckout(string(input.Provider), "error")
		return nil, err
	}

	s.logg.Info(s.logg.WithPaymentOrderID(ctx, po.ID.String()), "checkout split committed")

	created, err := s.paymentsRepo.FindByID(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.resultWithLink(ctx, gw, user, input.Address, created)
	if err != nil {
		s.metrics.IncCheckout(string(input.Provider), "gateway_error")
		return nil, err
	}
	s.metrics.IncCheckout(string(input.Provider), "created")
	return result, nil
}

// resumePending recovers a checkout whose transaction committed but whose
// gateway link request failed or whose response was lost. The cart is already
// converted at that point, so the retry re-serves the pending payment order
// and requests the link again if it was never created.
func (s *service) resumePending(ctx context.Context, user *models.User, address AddressInput) (*Result, error) {
	po, err := s.paymentsRepo.FindLatestPendingByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no active cart")
		}
		return nil, err
	}
	gw, err := s.gateways.For(po.Provider)
	if err != nil {
		return nil, err
	}
	s.metrics.IncCheckout(string(po.Provider), "replay")
	return s.resultWithLink(ctx, gw, user, address, po)
}

// resultWithLink ensures the payment order carries a gateway link. Replayed
// checkouts whose earlier link request failed get a fresh attempt here.
func (s *service) resultWithLink(ctx context.Context, gw gateway.Gateway, user *models.User, address AddressInput, po *models.PaymentOrder) (*Result, error) {
	result := &Result{PaymentOrder: po, Orders: po.Orders}

	if po.ExternalLinkID != nil {
		if po.PaymentLinkURL != nil {
			result.PaymentLinkURL = *po.PaymentLinkURL
		}
		return result, nil
	}
	if !po.Status.IsPending() {
		return result, nil
	}

	linkCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	link, err := gw.CreateLink(linkCtx, gateway.CreateLinkInput{
		Buyer: gateway.Buyer{
			Name:  user.FullName,
			Email: user.Email,
			Phone: address.Phone,
		},
		AmountCents:    po.AmountCents,
		PaymentOrderID: po.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.paymentsRepo.SetExternalLink(ctx, po.ID, link.ExternalID, link.URL); err != nil {
		return nil, err
	}
	po.ExternalLinkID = &link.ExternalID
	po.PaymentLinkURL = &link.URL
	result.PaymentLinkURL = link.URL
	return result, nil
}

type sellerGroup struct {
	sellerID          uuid.UUID
	items             []models.OrderItem
	totalMRPCents     int
	totalSellingCents int
	totalItems        int
}

// splitBySeller partitions cart items into one group per seller, preserving
// the order sellers first appear in the cart.
func splitBySeller(items []models.CartItem) []*sellerGroup {
	index := map[uuid.UUID]*sellerGroup{}
	groups := []*sellerGroup{}
	for _, item := range items {
		group, ok := index[item.SellerID]
		if !ok {
			group = &sellerGroup{sellerID: item.SellerID}
			index[item.SellerID] = group
			groups = append(groups, group)
		}
		group.items = append(group.items, models.OrderItem{
			ProductID:         item.ProductID,
			SellerID:          item.SellerID,
			Size:              item.Size,
			Quantity:          item.Quantity,
			MRPPriceCents:     item.MRPPriceCents,
			SellingPriceCents: item.SellingPriceCents,
		})
		group.totalMRPCents += item.MRPPriceCents * item.Quantity
		group.totalSellingCents += item.SellingPriceCents * item.Quantity
		group.totalItems += item.Quantity
	}
	return groups
}

// fingerprint derives the idempotency key from the user, the provider and the
// cart contents. Identical retries map to the same payment order.
func fingerprint(userID uuid.UUID, provider enums.PaymentProvider, record *models.Cart) string {
	lines := make([]string, 0, len(record.Items))
	for _, item := range record.Items {
		lines = append(lines, fmt.Sprintf("%s|%s|%d|%d|%d",
			item.ProductID, item.Size, item.Quantity, item.MRPPriceCents, item.SellingPriceCents))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", userID, record.ID, provider)
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

func resolveAddress(ctx context.Context, usersRepo *users.Repository, userID uuid.UUID, input AddressInput) (*models.Address, error) {
	candidate := models.Address{
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    input.Country,
		Phone:      input.Phone,
	}
	if candidate.Country == "" {
		candidate.Country = "IN"
	}

	saved, err := usersRepo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range saved {
		if saved[i].EqualValue(candidate) {
			return &saved[i], nil
		}
	}

	if err := usersRepo.CreateAddress(ctx, &candidate); err != nil {
		return nil, err
	}
	if err := usersRepo.AttachAddress(ctx, userID, candidate.ID); err != nil {
		return nil, err
	}
	return &candidate, nil
}

func validateAddress(a AddressInput) error {
	if strings.TrimSpace(a.Line1) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.State) == "" ||
		strings.TrimSpace(a.PostalCode) == "" ||
		strings.TrimSpace(a.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}
	return nil
}
