package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	binance "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/binance_client/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	cooldown "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/cooldown/service"
	executor "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/executor/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/health/service"
	tpsched "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/tp_scheduler/service"
	usersvc "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/user_stream/service"
	watchdog "github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/watchdog/service"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/metrics"
)

// MuxDeps groups what the HTTP surface reads and drives.
type MuxDeps struct {
	fx.In

	State    *service.State
	Mirror   *usersvc.Mirror
	Client   *binance.Client
	Gate     *cooldown.Gate
	Sched    *tpsched.Scheduler
	Guard    *watchdog.Watchdog
	Executor *executor.Executor
}

func NewMux(d MuxDeps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// ready once the user stream has delivered both event kinds
		if !d.Mirror.PositionsPrimed() || !d.Mirror.OrdersPrimed() {
			http.Error(w, "stream not primed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		banUntil := int64(0)
		if t := d.Client.BanUntil(); !t.IsZero() {
			banUntil = t.Unix()
		}
		resp := map[string]any{
			"uptimeSec":       int64(d.State.Uptime().Seconds()),
			"streamConnected": d.State.StreamConnected(),
			"positionsPrimed": d.Mirror.PositionsPrimed(),
			"ordersPrimed":    d.Mirror.OrdersPrimed(),
			"banUntilUnix":    banUntil,
			"cooldowns":       d.Gate.Snapshot(),
			"waitingTp":       d.Sched.Waiting(),
			"watchPending":    d.Guard.Pending(),
			"lastEventUnix": func() int64 {
				t := d.State.LastEvent()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		w.Header().Set("Content-Type", "application/json")
		body, err := sonic.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	})

	mux.Handle("/metrics", metrics.Handler())

	// batch intake for the external proposal generator
	mux.HandleFunc("/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var intents []models.TradeIntent
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&intents); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(intents) == 0 {
			http.Error(w, "empty batch", http.StatusBadRequest)
			return
		}

		res := d.Executor.ExecuteBatch(r.Context(), intents)

		w.Header().Set("Content-Type", "application/json")
		body, err := sonic.Marshal(res)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.HealthAddr)
			if err != nil {
				return err
			}
			logger.Info("http listening on %s", cfg.HealthAddr)
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
