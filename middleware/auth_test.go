package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func wrapMarker(reached *bool) http.Handler {
	return AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	reached := false
	req := httptest.NewRequest(http.MethodGet, "/api/AuditPlan", nil)
	rec := httptest.NewRecorder()

	wrapMarker(&reached).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestAuthMiddleware_UpgradeHeaderDoesNotBypassAuth(t *testing.T) {
	reached := false
	req := httptest.NewRequest(http.MethodGet, "/api/AuditPlan", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()

	wrapMarker(&reached).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestAuthMiddleware_EventStreamUpgradePassesThrough(t *testing.T) {
	// The event stream verifies its own token; only that exact path skips.
	reached := false
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()

	wrapMarker(&reached).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

func TestAuthMiddleware_EventPathWithoutUpgradeStillRequiresToken(t *testing.T) {
	reached := false
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	wrapMarker(&reached).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}
