package softwarerule

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/pkg/config"
)

func seedOnBoot(lc fx.Lifecycle, cfg *config.Config, svc *Service, log *zap.SugaredLogger) {
	if !cfg.SoftwareRules.SeedOnBoot {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			n, err := svc.SeedDefaults(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Infow("seeded default software rules", "count", n)
			}
			return nil
		},
	})
}

// Module exposes the software rule service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(seedOnBoot),
)
