package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newGormTestLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewGormLogger(zap.New(core), level), logs
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT * FROM mirror_items", 3 }

	t.Run("logs queries at debug in info mode", func(t *testing.T) {
		gl, logs := newGormTestLogger(gormlogger.Info)

		gl.Trace(ctx, time.Now(), query, nil)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zap.DebugLevel, entry.Level)
		assert.Equal(t, "SELECT * FROM mirror_items", entry.ContextMap()["sql"])
	})

	t.Run("logs errors", func(t *testing.T) {
		gl, logs := newGormTestLogger(gormlogger.Error)

		gl.Trace(ctx, time.Now(), query, errors.New("connection reset"))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
	})

	t.Run("suppresses record not found", func(t *testing.T) {
		gl, logs := newGormTestLogger(gormlogger.Error)

		gl.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)

		assert.Zero(t, logs.Len())
	})

	t.Run("warns on slow queries", func(t *testing.T) {
		gl, logs := newGormTestLogger(gormlogger.Warn)
		gl.slowThreshold = time.Nanosecond

		gl.Trace(ctx, time.Now().Add(-time.Second), query, nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
	})

	t.Run("silent mode logs nothing", func(t *testing.T) {
		gl, logs := newGormTestLogger(gormlogger.Silent)

		gl.Trace(ctx, time.Now(), query, errors.New("ignored"))

		assert.Zero(t, logs.Len())
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newGormTestLogger(gormlogger.Warn)

	changed := gl.LogMode(gormlogger.Info)
	require.NotSame(t, gl, changed)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
