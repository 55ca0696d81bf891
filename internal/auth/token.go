// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinSigningKeyLength is the shortest HS256 key NewJWTIssuer accepts, in bytes.
const MinSigningKeyLength = 32

// DefaultTokenTTL is the session token lifetime used when none is configured.
const DefaultTokenTTL = time.Hour

// Claims is the session token payload. Subject is the account ID.
type Claims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	ID        string    `json:"jti"`
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	// Issue signs a token for the claims. Issued-at, expiry and token ID are
	// assigned by the issuer.
	Issue(claims Claims) (string, error)

	// Verify checks signature, algorithm, issuer and expiry and returns the claims.
	Verify(token string) (Claims, error)
}

// JWTConfig configures a JWTIssuer.
type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	Leeway     time.Duration

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// JWTIssuer issues HS256-signed JWTs.
type JWTIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTIssuer validates cfg and returns an issuer holding its own copy of the key.
func NewJWTIssuer(cfg JWTConfig) (*JWTIssuer, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, oops.Code(CodeIssuerConfig).
			With("min", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code(CodeIssuerConfig).With("ttl", cfg.TTL.String()).Errorf("token TTL must be positive")
	}
	if cfg.Leeway < 0 {
		return nil, oops.Code(CodeIssuerConfig).With("leeway", cfg.Leeway.String()).Errorf("token leeway cannot be negative")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	return &JWTIssuer{
		key:    append([]byte(nil), cfg.SigningKey...),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Issue signs a token for claims.Subject.
func (j *JWTIssuer) Issue(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", oops.Code(CodeInvalidClaims).Errorf("token subject cannot be empty")
	}

	now := j.now()
	registered := jwt.RegisteredClaims{
		Subject:   claims.Subject,
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		ID:        ulid.Make().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(j.key)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").With("subject", claims.Subject).Wrap(err)
	}
	return signed, nil
}

// Verify parses and validates token.
func (j *JWTIssuer) Verify(token string) (Claims, error) {
	var registered jwt.RegisteredClaims
	parsed, err := j.parser.ParseWithClaims(token, &registered, func(*jwt.Token) (any, error) {
		return j.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, oops.Code(CodeExpiredToken).Errorf("token has expired")
		}
		return Claims{}, oops.Code(CodeInvalidToken).Wrapf(err, "invalid token")
	}
	if !parsed.Valid || registered.Subject == "" {
		return Claims{}, oops.Code(CodeInvalidToken).Errorf("invalid token")
	}

	claims := Claims{
		Subject: registered.Subject,
		ID:      registered.ID,
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
