package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/domain"
)

// Claims carries the player id in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTAuthority issues and verifies HS256 player tokens.
type JWTAuthority struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTAuthority(secret, issuer string) (*JWTAuthority, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTAuthority{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl.
func (a *JWTAuthority) Issue(userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify returns the user id in tokenString. An empty token is anonymous, not an error.
func (a *JWTAuthority) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", nil
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}

// IdentityFor binds a bearer token to an oracle for one session.
func (a *JWTAuthority) IdentityFor(token string) app.IdentityOracle {
	return tokenOracle{authority: a, token: token}
}

type tokenOracle struct {
	authority *JWTAuthority
	token     string
}

func (o tokenOracle) CurrentIdentity(context.Context) (string, error) {
	return o.authority.Verify(o.token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// StaticIdentity always reports the same user; an empty id means anonymous.
type StaticIdentity string

func (s StaticIdentity) CurrentIdentity(context.Context) (string, error) {
	return string(s), nil
}
