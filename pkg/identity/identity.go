// Package identity verifies session tokens issued by the external identity
// provider and exposes the authenticated user through the request context.
// It performs verification only; login, sessions, and user management belong
// to the identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated is returned when the caller cannot be identified.
	ErrUnauthenticated = errors.New("caller is not authenticated")
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Config holds identity verification settings, populated from the environment.
type Config struct {
	// SigningSecret is the shared HMAC secret the identity provider signs
	// session tokens with.
	SigningSecret string `env:"IDP_SIGNING_SECRET,required"`
}

// User is the authenticated caller extracted from a verified token.
type User struct {
	ID    string // stable external id (token subject)
	Email string
	Name  string
}

// Verifier validates identity-provider session tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier from config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SigningSecret == "" {
		return nil, errors.New("identity signing secret is required")
	}
	return &Verifier{secret: []byte(cfg.SigningSecret)}, nil
}

// Verify parses and validates a token, returning the embedded user.
func (v *Verifier) Verify(tokenStr string) (User, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return User{}, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return User{}, ErrInvalidToken
	}

	u := User{
		ID:    claimString(claims, "sub"),
		Email: claimString(claims, "email"),
		Name:  claimString(claims, "name"),
	}
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return u, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

type ctxKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser returns the authenticated user from the context.
func CurrentUser(ctx context.Context) (User, error) {
	u, ok := ctx.Value(ctxKey{}).(User)
	if !ok {
		return User{}, ErrUnauthenticated
	}
	return u, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// verified user in the request context. No handler state is touched before
// authentication succeeds.
func Middleware(v *Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				unauthorized(w)
				return
			}

			user, err := v.Verify(parts[1])
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
