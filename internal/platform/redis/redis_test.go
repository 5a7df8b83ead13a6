package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/subpanel/pkg/config"
)

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "://nope", time.Second)
	require.Error(t, err)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), "redis://127.0.0.1:1/0", 200*time.Millisecond)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRedisNotReady))
}

func TestNewClient_DisabledWithoutURL(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	c, err := NewClient(lc, zap.NewNop().Sugar(), &cfgpkg.Config{})
	require.NoError(t, err)
	require.Nil(t, c)
}
