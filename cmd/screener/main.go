package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StochSentinel/internal/collector"
	"StochSentinel/internal/config"
	"StochSentinel/internal/notifier"
	"StochSentinel/internal/recorder"
	"StochSentinel/internal/scheduler"

	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config validation: %v", err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log.Info("StochSentinel starting...")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init source
	var src collector.Source
	switch cfg.Exchange.Name {
	case config.ExchangeBybit:
		src = collector.NewBybitSource(cfg.Exchange.BaseURL, cfg.Exchange.Category, cfg.Proxy)
	case config.ExchangeDemo:
		src = collector.NewDemoSource(cfg.Timeframe(), cfg.Screener.Limit)
	default:
		src = collector.NewHyperliquidSource(cfg.Exchange.BaseURL, cfg.Proxy)
	}
	if cfg.Redis.Addr != "" {
		cache := collector.NewRedisUniverseCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer cache.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("redis unreachable, universe cache degrades to live listing")
		}
		cancel()
		src = collector.NewCachedSource(src, cache, cfg.UniverseTTL(), log)
	}
	log.WithField("source", src.Name()).Info("data source ready")

	// Init collector
	col := collector.NewCollector(src, collector.Options{
		Timeframe: cfg.Timeframe(),
		Limit:     cfg.Screener.Limit,
		Params:    cfg.StochRSIParams(),
		Workers:   cfg.Screener.Workers,
		Symbols:   cfg.Exchange.Symbols,
	}, log)

	// Init notifier
	var n notifier.Notifier
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		n = &notifier.RetryingNotifier{Telegram: tn, MaxRetries: cfg.Telegram.MaxRetries}
	} else {
		log.Warn("telegram not configured, alerts are written to the log only")
		n = notifier.NewLogNotifier(log)
	}

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	sched := scheduler.NewScheduler(col, n, rec, cfg.StrategyThresholds(), log)

	if tn != nil && cfg.Schedule.Mode != config.ModeOnce {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("Telegram polling started")
	}

	switch cfg.Schedule.Mode {
	case config.ModeOnce:
		rep, err := sched.RunCycle(ctx)
		if err != nil {
			log.WithError(err).Error("screening cycle failed")
			rec.Close()
			os.Exit(1)
		}
		if rep.DeliveryErr != nil {
			log.WithError(rep.DeliveryErr).Warn("cycle finished without delivering the alert")
		}
	case config.ModeCron:
		if err := sched.StartCron(ctx, cfg.Schedule.Cron); err != nil {
			log.Fatalf("start cron: %v", err)
		}
		if os.Getenv("RUN_ON_START") == "true" {
			log.Info("RUN_ON_START enabled, executing a cycle now")
			go func() {
				if _, err := sched.RunCycle(ctx); err != nil {
					log.WithError(err).Warn("startup cycle failed")
				}
			}()
		}
		log.Info("StochSentinel is running. Press Ctrl+C to stop.")
		<-ctx.Done()
		sched.Stop()
	default:
		log.WithField("delay", cfg.Delay()).Info("StochSentinel is running. Press Ctrl+C to stop.")
		sched.Run(ctx, cfg.Delay())
	}

	log.Info("StochSentinel stopped")
}
