package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/KNICEX/trading-monitor/internal/repo"
	"github.com/KNICEX/trading-monitor/internal/repo/cache"
	"github.com/KNICEX/trading-monitor/internal/schedule"
	"github.com/KNICEX/trading-monitor/internal/service/exchange/binance"
	"github.com/KNICEX/trading-monitor/internal/service/market"
	"github.com/KNICEX/trading-monitor/internal/service/monitor"
	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/KNICEX/trading-monitor/internal/service/signals"
	"github.com/KNICEX/trading-monitor/internal/web"
	"github.com/KNICEX/trading-monitor/ioc"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func initViper() {
	// .env 可选, 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(fmt.Errorf("load .env: %w", err))
	}

	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.dev.yaml", "specify config file")
	pflag.Parse()

	viper.SetConfigFile(*file)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
}

func main() {
	initViper()
	ioc.InitLogger()

	db := ioc.InitDB()
	positionRepo := repo.NewPositionRepo(db)
	snapshotRepo := repo.NewSnapshotRepo(db)
	subscriptionRepo := repo.NewSubscriptionRepo(db)
	preferenceRepo := repo.NewPreferenceRepo(db)

	checks := map[string]web.Checker{
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// 配置了 redis 时冷却/计数与信号状态在多实例间共享
	notifyLog := notification.NewMemoryLog()
	signalStore := signals.NewMemoryStore()
	if rdb := ioc.InitRedis(); rdb != nil {
		prefix := ioc.RedisPrefix()
		notifyLog = cache.NewNotificationLog(rdb, prefix)
		signalStore = cache.NewSignalStateStore(rdb, prefix)
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
		defer rdb.Close()
	}

	bian := ioc.InitBinanceCli()
	marketSvc := binance.NewMarketService(bian)
	provider := market.NewProvider(marketSvc)
	signalPredictor := ioc.InitPredictor(marketSvc)

	hub := ioc.InitBrowserHub()
	gate := ioc.InitGate(notifyLog)
	router := ioc.InitRouter(hub)
	slog.Info("notification channels registered", "channels", router.Channels())
	dispatcher := notification.NewDispatcher(gate, router, preferenceRepo, snapshotRepo)

	monitorCfg := ioc.InitMonitorConfig()
	positionTask := monitor.NewPositionMonitorTask(positionRepo, snapshotRepo, preferenceRepo,
		provider, signalPredictor, ioc.InitEvaluator(monitorCfg), dispatcher, ioc.InitPositionTaskConfig(monitorCfg))
	detector := signals.NewDetector(subscriptionRepo, signalPredictor, signalStore, ioc.InitDetectorConfig(monitorCfg))
	signalTask := signals.NewTask(detector, dispatcher)
	digestTask := notification.NewDigestTask(dispatcher, preferenceRepo, positionRepo, snapshotRepo, subscriptionRepo,
		notification.WithDailyCount(notifyLog))

	tickers := []*schedule.Ticker{
		schedule.NewTicker(positionTask, monitorCfg.PositionInterval, schedule.RunImmediately()),
		schedule.NewTicker(signalTask, monitorCfg.SignalInterval, schedule.RunImmediately()),
		schedule.NewTicker(digestTask, monitorCfg.DigestInterval),
	}

	deps := web.Deps{Checks: checks}
	if hub != nil {
		deps.WS = hub.ServeWS
		defer hub.Close()
	}
	server := ioc.InitServer(web.NewRouter(deps))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, t := range tickers {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.Start(ctx)
		}()
	}
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("ops http server exited", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down, waiting for in-flight sweeps")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown ops http server", "error", err)
	}
	wg.Wait()
	slog.Info("bye")
}
