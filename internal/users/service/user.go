package service

import (
	"context"
	"errors"

	spotservice "parkly/internal/spots/service"
	usererrors "parkly/internal/users/errors"
	"parkly/internal/users/repository"
	"parkly/internal/users/validator"
	"parkly/pkg/auth"
	"parkly/pkg/config"
	apperrors "parkly/pkg/errors"
	"parkly/pkg/model"
	"parkly/pkg/sanitizer"
)

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	spots     spotservice.SpotService
	validator *validator.UserValidator
	tokens    *auth.TokenManager
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	spots spotservice.SpotService,
	validator *validator.UserValidator,
	tokens *auth.TokenManager,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		spots:     spots,
		validator: validator,
		tokens:    tokens,
		cfg:       cfg,
	}
}

// Register creates a driver or owner account. Owners may claim an unclaimed
// spot number in the same request; the claim runs after the account exists so
// the spot carries the new owner's ID.
func (s *userService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	req.Name = sanitizer.SanitizeName(req.Name)
	if req.Role == "" {
		req.Role = auth.RoleDriver
	}

	if err := s.validator.ValidateRegister(req); err != nil {
		s.cfg.Log.Warn("User registration validation failed", "email", req.Email, "error", err)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{"error": err.Error()})
	}
	if req.SpotNumber != "" && req.Role != auth.RoleOwner {
		return nil, apperrors.Validation("Only owners can claim a spot at registration", nil)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
		Role:     req.Role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, usererrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email is already registered")
		}
		s.cfg.Log.Error("Failed to create user", "email", req.Email, "error", err)
		return nil, apperrors.Internal("Failed to create user", err)
	}

	if req.SpotNumber != "" {
		if _, err := s.spots.Claim(ctx, req.SpotNumber, req.SpotType, user.ID); err != nil {
			// The account stands; the claim alone failed. The caller sees
			// the claim error and can retry it through the spots API.
			s.cfg.Log.Warn("Spot claim during registration failed",
				"user_id", user.ID,
				"spot_number", req.SpotNumber,
				"error", err,
			)
			return nil, err
		}
	}

	s.cfg.Log.Info("User registered successfully", "id", user.ID, "email", user.Email, "role", user.Role)
	return user.Public(), nil
}

func (s *userService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)

	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, apperrors.Validation("Login validation failed", map[string]any{"error": err.Error()})
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		return nil, apperrors.Internal("Failed to look up user", err)
	}

	if !auth.CheckPasswordHash(req.Password, user.Password) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		s.cfg.Log.Error("Failed to issue token", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to issue token", err)
	}

	s.cfg.Log.Info("User logged in", "id", user.ID)
	return &model.LoginResponse{
		Token: token,
		User:  user.Public(),
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	identity, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && identity.UserID != id {
		return nil, apperrors.Forbidden("You can only view your own account")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, usererrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}

	return user.Public(), nil
}
