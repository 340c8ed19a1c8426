// Package auth issues and verifies the API's JWT access and refresh tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"murmur/internal/models"
	"murmur/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// Claims is the JWT payload.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// TokenPair is returned on register and login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Blacklist stores revoked token ids.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Options configures an Issuer.
type Options struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Blacklist  Blacklist
	Now        func() time.Time
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

// NewIssuer builds an Issuer. Zero TTLs fall back to the defaults.
func NewIssuer(opts Options) (*Issuer, error) {
	if opts.Secret == "" {
		return nil, errors.New("JWT secret not configured")
	}
	i := &Issuer{
		secret:     []byte(opts.Secret),
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		blacklist:  opts.Blacklist,
		now:        opts.Now,
	}
	if i.accessTTL <= 0 {
		i.accessTTL = DefaultAccessTTL
	}
	if i.refreshTTL <= 0 {
		i.refreshTTL = DefaultRefreshTTL
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i, nil
}

// AccessTTL is the lifetime of access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssuePair signs a new access and refresh token for userID.
func (i *Issuer) IssuePair(userID uint) (TokenPair, error) {
	access, err := i.sign(userID, TokenAccess, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(userID, TokenRefresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccess signs an access token for userID.
func (i *Issuer) IssueAccess(userID uint) (string, error) {
	return i.sign(userID, TokenAccess, i.accessTTL)
}

func (i *Issuer) sign(userID uint, typ TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", err
	}
	observability.TokensIssued.WithLabelValues(string(typ)).Inc()
	return signed, nil
}

func invalid(err error) error {
	return models.NewTokenInvalidError("Token is invalid or expired", err)
}

// Parse verifies tokenString and checks that it is a wantType token that has not
// been revoked. Every failure is a TOKEN_INVALID AppError.
func (i *Issuer) Parse(ctx context.Context, tokenString string, wantType TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, invalid(err)
	}
	if claims.TokenType != wantType {
		return nil, invalid(fmt.Errorf("expected %s token, got %q", wantType, claims.TokenType))
	}
	if _, err := claims.UserID(); err != nil {
		return nil, invalid(err)
	}

	if i.blacklist != nil {
		revoked, err := i.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			observability.Logger().WarnContext(ctx, "token blacklist lookup failed, allowing token",
				"jti", claims.ID, "error", err)
		} else if revoked {
			return nil, invalid(errors.New("token has been revoked"))
		}
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (i *Issuer) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := i.Parse(ctx, refresh, TokenRefresh)
	if err != nil {
		return "", err
	}
	userID, _ := claims.UserID()
	return i.IssueAccess(userID)
}

// Revoke blacklists the token described by claims until it would have expired.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	if i.blacklist == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return i.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(i.now()))
}
