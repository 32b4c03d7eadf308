package watchdog

import (
	"context"

	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/watchdog/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("watchdog",
		fx.Provide(
			func(cfg *config.Config, client *binance.Client, n notify.Notifier) *service.Watchdog {
				return service.NewWatchdog(client, n, cfg.WatchdogDeadline)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, w *service.Watchdog, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go w.Run(ctx)
					return nil
				},
			})
		}),
	)
}
