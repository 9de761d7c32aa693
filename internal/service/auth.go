// Package service provides the business logic layer (use cases).
// AuthService signs dashboard users in against the dealer backend, binds them
// to a session record and issues the access token the dashboard presents on
// every request.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const tokenIssuer = "ev-dealer-bfa"

// SessionLifecycle is the part of session.Provider that login and logout drive.
type SessionLifecycle interface {
	Init(ctx context.Context, user domain.User) (string, domain.User, error)
	SyncProfile(ctx context.Context, sid string, user domain.User) (domain.User, error)
	Teardown(ctx context.Context, sid string) error
}

// AuthService orchestrates authentication flows.
type AuthService struct {
	authn     port.Authenticator
	sessions  SessionLifecycle
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(authn port.Authenticator, sessions SessionLifecycle, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		authn:     authn,
		sessions:  sessions,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// ============================================================
// Login: POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	profile, err := s.authn.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	user := profile.ToUser()
	if user.Incomplete() {
		// The login payload may omit fields such as dealerId; GET /users/{id} is
		// canonical. A failed fetch leaves the user as is and Init decides.
		user, err = s.sessions.SyncProfile(ctx, "", user)
		if err != nil {
			return nil, err
		}
	}
	if !user.Role.IsValid() {
		s.logger.Warn("login: backend returned an unrecognised role",
			zap.Int64("user_id", user.ID),
			zap.String("raw_role", profile.Role),
		)
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID), attribute.String("user.role", user.Role.String()))

	sid, user, err := s.sessions.Init(ctx, user)
	if err != nil {
		return nil, err
	}

	token, err := s.signAccessToken(sid, user)
	if err != nil {
		_ = s.sessions.Teardown(ctx, sid)
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("role", user.Role.String()),
	)

	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        user,
	}, nil
}

// ============================================================
// Logout: POST /v1/auth/logout
// ============================================================

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.sessions.Teardown(ctx, sid); err != nil {
		return fmt.Errorf("teardown session: %w", err)
	}
	return nil
}

// ============================================================
// ValidateToken: used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
// Role is informational; authorization always reads the session record.
type JWTClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *JWTClaims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "access" || claims.SessionID == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return claims, nil
}

func (s *AuthService) signAccessToken(sid string, user domain.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		SessionID: sid,
		Role:      string(user.Role),
		Type:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
