package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"sync"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/account"
	"main/internal/alerts"
	"main/internal/broker"
	"main/internal/broker/paper"
	"main/internal/broker/symphony"
	"main/internal/model"
	"main/internal/ops"
	"main/internal/runner"
	"main/internal/store"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	migrateOnly := flag.Bool("migrate", false, "Run schema migration and exit")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config failed, err: %+v", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.ProfilerAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   cfg.ProfilerAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("pyroscope start failed, err: %+v", err)
			os.Exit(1)
		}
		defer func() { _ = profiler.Stop() }()
	}

	pg, err := conn.New(ctx, cfg.Postgres)
	if err != nil {
		logs.Errorf("postgres connect failed, err: %+v", err)
		os.Exit(1)
	}
	defer func() { _ = pg.Close() }()

	st := store.NewGormStore(pg.DB())
	if err := st.Migrate(); err != nil {
		logs.Errorf("schema migration failed, err: %+v", err)
		os.Exit(1)
	}
	if *migrateOnly {
		logs.Info("schema migration complete")
		return
	}

	mgr := account.NewManager(st, brokerFactory(cfg.Broker))
	run := runner.New(st, mgr)

	consumer, err := alerts.NewConsumer(cfg.NatsURL, st)
	if err != nil {
		logs.Errorf("alert bus connect failed, err: %+v", err)
		os.Exit(1)
	}
	if err := consumer.Start(); err != nil {
		logs.Errorf("alert consumer start failed, err: %+v", err)
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logs.Infof("serving metrics on %s/metrics", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("metrics server failed, err: %+v", err)
		}
	}()

	go runScheduler(ctx, st, mgr, run, cfg.TickInterval)

	<-sys.Shutdown()
	logs.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// brokerFactory builds the wire client per account row. Paper-mode
// accounts get the in-process simulator.
func brokerFactory(cfg ops.BrokerConfig) account.BrokerFactory {
	return func(acc model.Account) broker.Broker {
		if acc.TradeMode.IsPaper() {
			return paper.New()
		}
		return symphony.New(symphony.Option{
			BaseURL:      cfg.BaseURL,
			StreamURL:    cfg.StreamURL,
			APIKey:       acc.APIKey,
			APISecret:    acc.APISecret,
			Source:       cfg.Source,
			HTTPTimeout:  cfg.HTTPTimeout(),
			Backoff:      cfg.StreamBackoff(),
			MaxReconnect: cfg.MaxReconnect,
		})
	}
}

// runScheduler fires one tick per interval. Each strategy runs on its
// own goroutine; a strategy whose previous tick is still in flight is
// skipped so runs for the same strategy never overlap.
func runScheduler(ctx context.Context, st store.Store, mgr *account.Manager, run *runner.StrategyRunner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var mu sync.Mutex
	inflight := make(map[uint64]bool)

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		strategies, err := st.Strategies(ctx)
		if err != nil {
			logs.Errorf("load strategies failed, err: %+v", err)
			continue
		}

		go mgr.CheckAccountFunctions(ctx, strategies)

		for _, strategy := range strategies {
			mu.Lock()
			busy := inflight[strategy.ID]
			if !busy {
				inflight[strategy.ID] = true
			}
			mu.Unlock()
			if busy {
				continue
			}

			go func(id uint64) {
				defer func() {
					mu.Lock()
					inflight[id] = false
					mu.Unlock()
				}()
				if err := run.Run(ctx, id); err != nil {
					logs.Errorf("strategy %d tick failed, err: %+v", id, err)
				}
			}(strategy.ID)
		}
	}
}
