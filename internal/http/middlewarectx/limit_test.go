package middlewarectx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/community-access/internal/http/middlewarectx"
)

func TestRateLimitMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	})

	t.Run("blocks requests exceeding rate limit", func(t *testing.T) {
		h := middlewarectx.RateLimitMiddleware(newNoopLogger(), 2, time.Minute)(testHandler)

		for range 2 {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "success", w.Body.String())
		}

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
	})

	t.Run("users are limited separately", func(t *testing.T) {
		h := middlewarectx.RateLimitMiddleware(newNoopLogger(), 1, time.Minute)(testHandler)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/test", nil), "alice"))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/test", nil), "bob"))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/test", nil), "alice"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}
