package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newGinTestRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware(logger))
	return router
}

func TestGinMiddleware(t *testing.T) {
	t.Run("logs successful requests at info level", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		router := newGinTestRouter(zap.New(core))
		router.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zap.InfoLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "/status", fields["path"])
		assert.Equal(t, int64(http.StatusOK), fields["status"])
	})

	t.Run("logs server errors at error level", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		router := newGinTestRouter(zap.New(core))
		router.GET("/boom", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
	})

	t.Run("logs client errors at warn level", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		router := newGinTestRouter(zap.New(core))
		router.GET("/nope", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
	})

	t.Run("stores request-scoped logger in gin context", func(t *testing.T) {
		core, _ := observer.New(zap.InfoLevel)
		router := newGinTestRouter(zap.New(core))

		var handlerLogger *zap.Logger
		router.GET("/handler", func(c *gin.Context) {
			handlerLogger = GetGinLogger(c)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/handler", nil)
		router.ServeHTTP(w, req)

		require.NotNil(t, handlerLogger)
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("something broke")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
}

func TestGetGinLogger_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	logger := GetGinLogger(c)
	require.NotNil(t, logger)
}
