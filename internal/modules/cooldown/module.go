package cooldown

import (
	"context"
	"path/filepath"

	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/cooldown/service"
	usersvc "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/user_stream/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/store"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("cooldown",
		fx.Provide(
			func(cfg *config.Config, client *binance.Client) *service.Gate {
				file := store.NewFile(filepath.Join(cfg.DataDir, "cooldowns.json"))
				return service.NewGate(cfg.Cooldown, file, client)
			},
		),
		// every close the stream reports settles the symbol's loss streak
		// from the income ledger
		fx.Invoke(func(gate *service.Gate, mirror *usersvc.Mirror, ctx context.Context) {
			mirror.OnPositionClosed(func(symbol string) {
				go func() {
					if err := gate.SettleFromIncome(ctx, symbol); err != nil {
						logger.Error("cooldown settle %s: %v", symbol, err)
					}
				}()
			})
		}),
	)
}
