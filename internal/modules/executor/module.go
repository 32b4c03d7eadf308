package executor

import (
	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	cooldown "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/cooldown/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/executor/service"
	tpsched "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/tp_scheduler/service"
	watchdog "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/watchdog/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			func(client *binance.Client, gate *cooldown.Gate, sched *tpsched.Scheduler,
				guard *watchdog.Watchdog, n notify.Notifier, cfg *config.Config) *service.Executor {
				return service.NewExecutor(client, gate, sched, guard, n, cfg)
			},
		),
	)
}
