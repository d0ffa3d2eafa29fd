// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"copyforge/internal/apperr"
)

// Issuer is the iss claim of every token this service signs.
const Issuer = "copyforge"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// OwnerKey is the context key for the authenticated merchant's id.
const OwnerKey contextKey = "owner"

// Authenticator signs and verifies merchant bearer tokens (HS256 JWTs
// whose subject is the merchant's uuid).
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator using secret as the HMAC key.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for ownerID valid for ttl.
func (a *Authenticator) Issue(ownerID uuid.UUID, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID.String(),
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the merchant id in its subject.
// Any failure is an apperr.Unauthorized.
func (a *Authenticator) Verify(raw string) (uuid.UUID, error) {
	const op = "middleware.Verify"
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return uuid.Nil, apperr.E(apperr.Unauthorized, op, err)
	}
	owner, err := uuid.Parse(claims.Subject)
	if err != nil || owner == uuid.Nil {
		return uuid.Nil, apperr.Errorf(apperr.Unauthorized, op, "token subject is not a merchant id")
	}
	return owner, nil
}

// Authenticate rejects requests without a valid bearer token and stores
// the merchant id in the request context. Downstream handlers read it
// with OwnerFromCtx.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			WriteError(w, apperr.Errorf(apperr.Unauthorized, "middleware.Authenticate", "missing bearer token"))
			return
		}
		owner, err := a.Verify(raw)
		if err != nil {
			// Parser errors are not echoed to clients.
			if errors.Is(err, jwt.ErrTokenExpired) {
				WriteError(w, apperr.Errorf(apperr.Unauthorized, "middleware.Authenticate", "token expired"))
				return
			}
			WriteError(w, apperr.Errorf(apperr.Unauthorized, "middleware.Authenticate", "invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithOwner returns a copy of ctx carrying the merchant id.
func WithOwner(ctx context.Context, owner uuid.UUID) context.Context {
	return context.WithValue(ctx, OwnerKey, owner)
}

// OwnerFromCtx returns the authenticated merchant id, if any.
func OwnerFromCtx(ctx context.Context) (uuid.UUID, bool) {
	owner, ok := ctx.Value(OwnerKey).(uuid.UUID)
	return owner, ok
}
