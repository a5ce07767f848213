package sellers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
)

// Service exposes seller report reads.
type Service interface {
	GetReport(ctx context.Context, sellerID uuid.UUID) (*models.SellerReport, error)
}

type service struct {
	repo Repository
}

// NewService wires a sellers service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	return &service{repo: repo}, nil
}

// GetReport returns the seller's counters, creating the zeroed row on first
// read so new sellers never 404 their own dashboard.
func (s *service) GetReport(ctx context.Context, sellerID uuid.UUID) (*models.SellerReport, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	return s.repo.EnsureReport(ctx, sellerID)
}
