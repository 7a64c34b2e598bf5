package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/auth"
	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserView is the public projection of a user returned by the auth routes.
type UserView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type Session struct {
	User         UserView `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

type AuthService struct {
	Users   UserStore
	Tokens  *auth.TokenService
	Revoked auth.RevocationList
	Logger  zerolog.Logger
	Now     func() time.Time
}

func NewAuthService(users UserStore, tokens *auth.TokenService, revoked auth.RevocationList, logger zerolog.Logger) *AuthService {
	return &AuthService{
		Users:   users,
		Tokens:  tokens,
		Revoked: revoked,
		Logger:  logger.With().Str("component", "auth").Logger(),
		Now:     time.Now,
	}
}

func viewOf(u models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

// Register creates a self-service account. The role is always employee.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.Users.GetUserByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Session{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return Session{}, invalid("password is too long")
		}
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.Now().UTC()
	u := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         models.RoleEmployee,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}
	return s.session(u)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	u, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, sentinel.ErrNotFound) {
		s.Logger.Warn().Str("email", in.Email).Msg("login failed: unknown user")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		s.Logger.Warn().Str("email", in.Email).Msg("login failed: password mismatch")
		return Session{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return Session{}, ErrInvalidCredentials
	}

	now := s.Now().UTC()
	if err := s.Users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return Session{}, fmt.Errorf("record login: %w", err)
	}
	u.LastLogin = &now
	s.Logger.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("login succeeded")
	return s.session(u)
}

// Refresh exchanges a valid refresh token for a new pair and revokes the
// presented one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.validRefresh(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	u, err := s.Users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return auth.TokenPair{}, ErrUnauthorized
	}
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !u.IsActive {
		return auth.TokenPair{}, ErrUnauthorized
	}
	if err := s.revoke(ctx, claims); err != nil {
		return auth.TokenPair{}, err
	}
	return s.Tokens.Issue(u.ID, u.Role)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.validRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

func (s *AuthService) Me(ctx context.Context, userID string) (models.User, error) {
	return s.Users.GetUserByID(ctx, userID)
}

// Authenticate resolves the user behind an access token. Inactive or
// missing users are unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	claims, err := s.Tokens.ParseAccess(accessToken)
	if err != nil {
		return models.User{}, ErrUnauthorized
	}
	u, err := s.Users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.User{}, ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}
	if !u.IsActive {
		return models.User{}, ErrUnauthorized
	}
	return u, nil
}

func (s *AuthService) validRefresh(ctx context.Context, token string) (*auth.RefreshClaims, error) {
	claims, err := s.Tokens.ParseRefresh(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	revoked, err := s.Revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.RefreshClaims) error {
	ttl := s.Tokens.RefreshTTL()
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.Now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.Revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) session(u models.User) (Session, error) {
	pair, err := s.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Session{User: viewOf(u), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}
