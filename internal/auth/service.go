package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/users"
	pkgAuth "github.com/lucasferreyra/seedmart-backend/pkg/auth"
	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	"github.com/lucasferreyra/seedmart-backend/pkg/db"
	"github.com/lucasferreyra/seedmart-backend/pkg/db/models"
	"github.com/lucasferreyra/seedmart-backend/pkg/enums"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
}

type service struct {
	tx          txRunner
	users       *users.Repository
	sellersRepo sellers.Repository
	jwtCfg      config.JWTConfig
}

// NewService constructs an auth service with the provided dependencies.
func NewService(tx txRunner, usersRepo *users.Repository, sellersRepo sellers.Repository, jwtCfg config.JWTConfig) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if sellersRepo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	return &service{
		tx:          tx,
		users:       usersRepo,
		sellersRepo: sellersRepo,
		jwtCfg:      jwtCfg,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	role := enums.UserRoleCustomer
	if req.Role != "" {
		parsed, err := enums.ParseUserRole(req.Role)
		if err != nil || parsed == enums.UserRoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be customer or seller")
		}
		role = parsed
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	var sellerID *uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		sellersRepo := s.sellersRepo.WithTx(tx)

		user, err = usersRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: hash,
			FullName:     strings.TrimSpace(req.FullName),
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return err
		}

		if role == enums.UserRoleSeller {
			seller := &models.Seller{
				OwnerUserID: user.ID,
				DisplayName: user.FullName,
				Email:       user.Email,
			}
			if err := sellersRepo.Create(ctx, seller); err != nil {
				return err
			}
			sellerID = &seller.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.session(user, sellerID)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	var sellerID *uuid.UUID
	if user.Role == enums.UserRoleSeller {
		seller, err := s.sellersRepo.FindByOwnerUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup seller")
		}
		if seller != nil {
			sellerID = &seller.ID
		}
	}

	return s.session(user, sellerID)
}

func (s *service) session(user *models.User, sellerID *uuid.UUID) (*SessionResponse, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Role:     user.Role,
		SellerID: sellerID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &SessionResponse{
		AccessToken: token,
		User:        users.FromModel(user),
	}, nil
}
