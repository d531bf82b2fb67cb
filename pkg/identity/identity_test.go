package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulcerts/entitlement/pkg/identity"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newVerifier(t *testing.T) *identity.Verifier {
	t.Helper()
	v, err := identity.NewVerifier(identity.Config{SigningSecret: testSecret})
	require.NoError(t, err)
	return v
}

func TestVerifier_Verify(t *testing.T) {
	v := newVerifier(t)

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub":   "user_1",
			"email": "a@b.com",
			"name":  "Ada",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		user, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, identity.User{ID: "user_1", Email: "a@b.com", Name: "Ada"}, user)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub": "user_1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := v.Verify(token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"sub": "user_1"})

		_, err := v.Verify(token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"email": "a@b.com"})

		_, err := v.Verify(token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.Verify("not-a-jwt")
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := identity.NewVerifier(identity.Config{})
	assert.Error(t, err)
}

func TestCurrentUser(t *testing.T) {
	_, err := identity.CurrentUser(t.Context())
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	ctx := identity.WithUser(t.Context(), identity.User{ID: "user_1"})
	user, err := identity.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)
}

func TestMiddleware(t *testing.T) {
	v := newVerifier(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := identity.CurrentUser(r.Context())
		require.NoError(t, err)
		w.Header().Set("X-User", user.ID)
		w.WriteHeader(http.StatusOK)
	})
	handler := identity.Middleware(v)(next)

	t.Run("valid bearer token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub": "user_1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user_1", rec.Header().Get("X-User"))
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad.token.here")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
