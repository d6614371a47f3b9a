package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	pkg_hash "github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/jwthelp"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

type AuthService struct {
	Repo          *repo.GormRepo
	JWTSecret     []byte
	RefreshSecret []byte
	Events        events.Publisher
	Producer      string
}

type AuthResult struct {
	User   *models.User
	Tokens *tokens.Pair
}

func (s *AuthService) createAccessToken(u *models.User, exp time.Time) (string, error) {
	return tokens.SignAccessToken(tokens.AccessClaims{
		Role:  u.Role,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, s.JWTSecret)
}

func (s *AuthService) createRefreshToken(userID uint, exp time.Time) (string, *models.RefreshToken, error) {
	jti := jwthelp.NewJTI()
	raw, err := tokens.SignRefreshToken(tokens.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, s.RefreshSecret)
	if err != nil {
		return "", nil, err
	}
	return raw, &models.RefreshToken{
		JTI:       jti,
		TokenHash: jwthelp.Sha256Hex(raw),
		UserID:    userID,
		ExpiresAt: exp,
	}, nil
}

func (s *AuthService) issue(u *models.User) (*tokens.Pair, *models.RefreshToken, error) {
	now := time.Now()
	accessExp := now.Add(AccessTTL)
	refreshExp := now.Add(RefreshTTL)

	access, err := s.createAccessToken(u, accessExp)
	if err != nil {
		return nil, nil, err
	}
	refresh, stored, err := s.createRefreshToken(u.ID, refreshExp)
	if err != nil {
		return nil, nil, err
	}
	return &tokens.Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, stored, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         tokens.RoleUser,
	}

	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		l.Error("register_error", "status", 500, "reason", "cannot create user", "error", err)
		return nil, err
	}

	s.publish(ctx, user)
	return s.login(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return s.login(ctx, user)
}

func (s *AuthService) login(ctx context.Context, user *models.User) (*AuthResult, error) {
	pair, stored, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.AddRefreshToken(ctx, stored); err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh rotates refreshToken: the old jti is revoked and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "cannot parse refresh token", "error", err)
		return nil, ErrInvalidRefreshToken
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.Repo.GetUserByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	pair, next, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.RotateRefreshToken(ctx, claims.ID, refreshToken, next); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repo.ErrTokenExpiredOrRevoked) {
			l.Warn("refresh_failed", "status", 401, "reason", "token expired or revoked", "user_id", user.ID)
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Repo.RevokeRefreshToken(ctx, refreshToken)
}

// EnsureAdmin creates the account if needed and grants it the ADMIN role.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	l := logging.FromContext(ctx).With("svc", "auth.ensure_admin")

	email = normalizeEmail(email)
	user, err := s.Repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pwHash, hErr := pkg_hash.HashPassword(password)
		if hErr != nil {
			return hErr
		}
		user = &models.User{Email: email, PasswordHash: pwHash, Role: tokens.RoleAdmin}
		if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
			return err
		}
		l.Info("admin_created", "user_id", user.ID)
		return nil
	case err != nil:
		return err
	}

	if user.Role == tokens.RoleAdmin {
		return nil
	}
	if err := s.Repo.SetUserRole(ctx, user.ID, tokens.RoleAdmin); err != nil {
		return err
	}
	l.Info("admin_promoted", "user_id", user.ID)
	return nil
}

func (s *AuthService) publish(ctx context.Context, u *models.User) {
	if s.Events == nil {
		return
	}
	key := strconv.FormatUint(uint64(u.ID), 10)
	ev := events.NewEnvelope(events.TypeUserRegistered, s.Producer, key, events.UserRegistered{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
	})
	if err := s.Events.Publish(ctx, events.TopicUsers, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "topic", events.TopicUsers, "type", ev.Type, "error", err)
	}
}
