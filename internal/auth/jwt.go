// Package auth issues and validates grower access tokens.
//
// Access tokens are HS256 JWTs carrying the grower id as subject. They are
// short-lived; there are no refresh tokens, growers are re-issued tokens by
// the account system that fronts this API.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Defaults applied to zero JWTConfig fields.
const (
	DefaultAccessTokenTTL = time.Hour
	DefaultIssuer         = "https://api.greenyield.io"
	DefaultAudience       = "greenyield-api"
)

// MinSigningKeyLength is the shortest accepted HS256 key.
const MinSigningKeyLength = 32

// Token errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingGrowerID    = errors.New("grower id is required")
	ErrWeakSigningKey     = fmt.Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
)

// Claims are the claims of a grower access token.
type Claims struct {
	jwt.RegisteredClaims

	GrowerID string `json:"gid"`
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, ErrWeakSigningKey
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}

	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        now,
	}, nil
}

// GenerateAccessToken issues a token for the grower.
func (s *JWTService) GenerateAccessToken(growerID string) (string, time.Time, error) {
	if growerID == "" {
		return "", time.Time{}, ErrMissingGrowerID
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   growerID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        tokenID(),
		},
		GrowerID: growerID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry and
// returns the token claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.GrowerID == "" || claims.GrowerID != claims.Subject {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

func tokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
