package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/cooldown"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/executor"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/health"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/tp_scheduler"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/user_stream"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/watchdog"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/notify"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/tracing"
)

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		return nil, err
	}
	if tg == nil {
		return notify.NewStdout(), nil
	}
	return tg, nil
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.JaegerHost == "" {
		return nil
	}
	tracing.SetServiceName("execution-engine")
	_, closeTracer, err := tracing.InitTracer(tracing.Config{Host: cfg.JaegerHost, Port: cfg.JaegerPort})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		closeTracer()
		return nil
	}})
	return nil
}

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			newNotifier,
		),
		fx.Invoke(initTracing),
		config.Module(),
		binance.Module(),
		user_stream.Module(),
		cooldown.Module(),
		tp_scheduler.Module(),
		watchdog.Module(),
		executor.Module(),
		health.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
