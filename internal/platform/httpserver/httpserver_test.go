package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"lexicon/internal/platform/logger"
)

func TestOpsRouter(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("lexicon_build_info 1\n"))
	})

	t.Run("healthz is always ok", func(t *testing.T) {
		router := NewOpsRouter(logger.Discard(), metrics, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz fails when a check fails", func(t *testing.T) {
		router := NewOpsRouter(logger.Discard(), metrics, map[string]Checker{
			"store": CheckerFunc(func(context.Context) error { return errors.New("down") }),
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "down")
	})

	t.Run("metrics are served", func(t *testing.T) {
		router := NewOpsRouter(logger.Discard(), metrics, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, rec.Body.String(), "lexicon_build_info")
	})
}
