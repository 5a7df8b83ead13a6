package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestShortCaller(t *testing.T) {
	cases := map[string]string{
		"":                                       "",
		"/home/ci/subpanel/internal/app/x.go:12": "internal/app/x.go:12",
		"/home/ci/subpanel/pkg/types/y.go:3":     "pkg/types/y.go:3",
		"/a/b/c/d.go:7":                          "b/c/d.go:7",
		"c/d.go:7":                               "c/d.go:7",
	}
	for in, want := range cases {
		require.Equal(t, want, shortCaller(in), in)
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, gormlogger.Silent, ParseLevel("silent"))
	require.Equal(t, gormlogger.Info, ParseLevel("INFO"))
	require.Equal(t, gormlogger.Warn, ParseLevel("bogus"))
}

func TestTrace_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core).Sugar(), gormlogger.Warn)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	require.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	require.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm_slow").Len())

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())
}
