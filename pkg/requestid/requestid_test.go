package requestid_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulcerts/entitlement/pkg/requestid"
)

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var captured string
	handler := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestid.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestMiddleware(t *testing.T) {
	t.Run("generates id when missing", func(t *testing.T) {
		rec, captured := serve(t, "")

		id := rec.Header().Get(requestid.Header)
		require.NotEmpty(t, id)
		assert.Equal(t, id, captured)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("reuses well-formed client id", func(t *testing.T) {
		rec, captured := serve(t, "evt_delivery-42")

		assert.Equal(t, "evt_delivery-42", rec.Header().Get(requestid.Header))
		assert.Equal(t, "evt_delivery-42", captured)
	})

	t.Run("replaces malformed id", func(t *testing.T) {
		rec, _ := serve(t, "bad id\nwith newline")

		id := rec.Header().Get(requestid.Header)
		assert.NotEqual(t, "bad id\nwith newline", id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		long := strings.Repeat("a", 200)
		rec, _ := serve(t, long)
		assert.NotEqual(t, long, rec.Header().Get(requestid.Header))
	})
}

func TestFromContext_Empty(t *testing.T) {
	assert.Empty(t, requestid.FromContext(t.Context()))
}
