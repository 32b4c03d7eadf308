package tp_scheduler

import (
	"context"
	"path/filepath"
	"time"

	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/tp_scheduler/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/store"

	"go.uber.org/fx"
)

const reconcileInterval = 5 * time.Second

func Module() fx.Option {
	return fx.Module("tp_scheduler",
		fx.Provide(
			func(cfg *config.Config, client *binance.Client) *service.Scheduler {
				file := store.NewFile(filepath.Join(cfg.DataDir, "waiting_tp.json"))
				return service.NewScheduler(client, file)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Scheduler, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go s.Run(ctx, reconcileInterval)
					return nil
				},
			})
		}),
	)
}
