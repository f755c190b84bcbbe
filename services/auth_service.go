package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"notebox/models"
	"notebox/repositories"
	"notebox/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`

	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

type RegisterInput struct {
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type UserOutput struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenOutput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (UserOutput, error)
	Login(ctx context.Context, in LoginInput) (TokenOutput, error)
	Refresh(ctx context.Context, refreshToken string) (TokenOutput, error)
	Logout(ctx context.Context, identity Identity) error
	ResolveToken(ctx context.Context, token string) (Identity, error)
	Me(ctx context.Context, identity Identity) (UserOutput, error)
}

type authService struct {
	txManager   TxManager
	users       repositories.UserRepository
	revocations repositories.TokenRevocationRepository
	signer      *utils.TokenSigner
	cfg         AuthConfig
}

func NewAuthService(
	txManager TxManager,
	users repositories.UserRepository,
	revocations repositories.TokenRevocationRepository,
	signer *utils.TokenSigner,
	cfg AuthConfig,
) AuthService {
	return &authService{
		txManager:   txManager,
		users:       users,
		revocations: revocations,
		signer:      signer,
		cfg:         cfg,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (UserOutput, error) {
	username := strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(username); n < 3 || n > 50 {
		return UserOutput{}, newAppError(http.StatusUnprocessableEntity, "username must be 3 to 50 characters", nil)
	}
	if len(in.Password) < 6 || len(in.Password) > utils.MaxPasswordBytes {
		return UserOutput{}, newAppError(http.StatusUnprocessableEntity, "password must be 6 to 72 bytes", nil)
	}

	count, err := s.users.CountByUsername(ctx, nil, username)
	if err != nil {
		return UserOutput{}, persistenceError("failed to check username", err)
	}
	if count > 0 {
		return UserOutput{}, newKindError(ErrConflict, http.StatusBadRequest, "Username already registered", nil)
	}

	hashedPassword, err := utils.HashPassword(in.Password)
	if err != nil {
		return UserOutput{}, newAppError(http.StatusInternalServerError, "failed to hash password", err)
	}

	user := models.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: hashedPassword,
	}
	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.users.Create(ctx, tx, &user)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return UserOutput{}, newKindError(ErrConflict, http.StatusBadRequest, "Username already registered", nil)
		}
		return UserOutput{}, persistenceError("failed to create user", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return toUserOutput(user), nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (TokenOutput, error) {
	user, err := s.users.GetByUsername(ctx, nil, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenOutput{}, newAppError(http.StatusUnauthorized, "Incorrect username or password", nil)
		}
		return TokenOutput{}, persistenceError("failed to query user", err)
	}

	if !utils.CheckPassword(in.Password, user.Password) {
		return TokenOutput{}, newAppError(http.StatusUnauthorized, "Incorrect username or password", nil)
	}

	return s.issueTokens(user)
}

// Refresh trades a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (TokenOutput, error) {
	claims, err := s.signer.ParseToken(refreshToken, utils.RefreshToken)
	if err != nil {
		return TokenOutput{}, newAppError(http.StatusUnauthorized, "Could not validate credentials", err)
	}
	if err := s.checkNotRevoked(ctx, claims.ID); err != nil {
		return TokenOutput{}, err
	}

	user, err := s.users.GetByID(ctx, nil, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenOutput{}, newAppError(http.StatusUnauthorized, "Could not validate credentials", nil)
		}
		return TokenOutput{}, persistenceError("failed to query user", err)
	}

	if err := s.revocations.Revoke(ctx, claims.ID, s.signer.RemainingTTL(claims)); err != nil {
		return TokenOutput{}, persistenceError("failed to revoke refresh token", err)
	}
	return s.issueTokens(user)
}

func (s *authService) Logout(ctx context.Context, identity Identity) error {
	if identity.TokenID == "" {
		return newAppError(http.StatusUnauthorized, "Could not validate credentials", nil)
	}
	if err := s.revocations.Revoke(ctx, identity.TokenID, time.Until(identity.ExpiresAt)); err != nil {
		return persistenceError("failed to revoke token", err)
	}
	slog.Info("user logged out", "user_id", identity.ID)
	return nil
}

// ResolveToken turns a bearer access token into the caller's identity.
func (s *authService) ResolveToken(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, newAppError(http.StatusUnauthorized, "Not authenticated", nil)
	}
	claims, err := s.signer.ParseToken(token, utils.AccessToken)
	if err != nil {
		return Identity{}, newAppError(http.StatusUnauthorized, "Could not validate credentials", err)
	}
	if err := s.checkNotRevoked(ctx, claims.ID); err != nil {
		return Identity{}, err
	}

	user, err := s.users.GetByID(ctx, nil, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, newAppError(http.StatusUnauthorized, "Could not validate credentials", nil)
		}
		return Identity{}, persistenceError("failed to query user", err)
	}

	identity := Identity{ID: user.ID, Username: user.Username, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (s *authService) Me(ctx context.Context, identity Identity) (UserOutput, error) {
	user, err := s.users.GetByID(ctx, nil, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserOutput{}, notFound("User not found")
		}
		return UserOutput{}, persistenceError("failed to query user", err)
	}
	return toUserOutput(user), nil
}

func (s *authService) checkNotRevoked(ctx context.Context, tokenID string) error {
	revoked, err := s.revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		return persistenceError("failed to check token revocation", err)
	}
	if revoked {
		return newAppError(http.StatusUnauthorized, "Token has been revoked", nil)
	}
	return nil
}

func (s *authService) issueTokens(user models.User) (TokenOutput, error) {
	access, _, err := s.signer.GenerateToken(user.ID, user.Username, utils.AccessToken, s.cfg.AccessTTL)
	if err != nil {
		return TokenOutput{}, newAppError(http.StatusInternalServerError, "failed to generate token", err)
	}
	refresh, _, err := s.signer.GenerateToken(user.ID, user.Username, utils.RefreshToken, s.cfg.RefreshTTL)
	if err != nil {
		return TokenOutput{}, newAppError(http.StatusInternalServerError, "failed to generate token", err)
	}
	return TokenOutput{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, nil
}

func toUserOutput(user models.User) UserOutput {
	return UserOutput{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt}
}
