package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/hook", WebhookAuth(secret), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestWebhookAuth(t *testing.T) {
	t.Run("accepts matching secret", func(t *testing.T) {
		engine := newAuthRouter("s3cret")

		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.Header.Set(WebhookSecretHeader, "s3cret")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		engine := newAuthRouter("s3cret")

		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.Header.Set(WebhookSecretHeader, "wrong")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects missing secret", func(t *testing.T) {
		engine := newAuthRouter("s3cret")

		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty configured secret disables check", func(t *testing.T) {
		engine := newAuthRouter("")

		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("generates an ID when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Body.String())
		assert.Equal(t, rec.Body.String(), rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagates a caller-provided ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", rec.Body.String())
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})
}
