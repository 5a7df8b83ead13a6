package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/subpanel/pkg/config"
)

var ErrRedisNotReady = errors.New("redis is not ready")

// Connect parses url, dials and pings once within timeout.
func Connect(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}
	return client, nil
}

// NewClient returns nil when no redis url is configured; consumers fall back
// to in-process state.
func NewClient(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		l.Infow("redis disabled")
		return nil, nil
	}
	client, err := Connect(context.Background(), cfg.Redis.URL, cfg.Redis.ConnectTimeout)
	if err != nil {
		l.Errorf("failed to connect redis: %v", err)
		return nil, err
	}
	l.Infow("connected to redis", "addr", client.Options().Addr)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("closing redis client")
			return client.Close()
		},
	})
	return client, nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
