package binance_client

import (
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("binance_client",
		fx.Provide(
			service.NewClient,
		),
	)
}
