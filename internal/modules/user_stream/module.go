package user_stream

import (
	"context"

	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/user_stream/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("user_stream",
		fx.Provide(
			service.NewMirror,
			func(c *binance.Client) service.ListenKeySource { return c },
			service.NewStreamClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, client *service.Client, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go client.Run(ctx)
					return nil
				},
			})
		}),
	)
}
