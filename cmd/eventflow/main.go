package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventflow/internal/bot"
	"eventflow/internal/clock"
	"eventflow/internal/config"
	"eventflow/internal/eventbus"
	"eventflow/internal/logger"
	"eventflow/internal/model"
	"eventflow/internal/repository"
	"eventflow/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.New("main", "").Fatal("config", "error", err)
	}

	log := logger.New("eventflow", cfg.Env)
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("timezone", "error", err)
	}

	kv, closeKV, err := openStorage(ctx, cfg, log.Named("storage"))
	if err != nil {
		log.Fatal("storage", "driver", cfg.StorageDriver, "error", err)
	}
	defer closeKV()

	bus := eventbus.New(log.Named("eventbus"))
	bus.Subscribe(eventbus.TopicPersistenceWarning, func(m eventbus.Message) {
		log.Warn("persistence degraded", "error", m.Payload)
	})

	store := service.NewEventStore(repository.NewEventRepository(kv), bus, service.WithLogger(log.Named("store")))
	if err := store.Load(ctx); err != nil {
		log.Warn("load events, keeping seeds", "error", err)
	}

	var stats service.StatsEngine
	if cfg.StatsMode == config.StatsDerived {
		stats = service.NewDerivedStats(store)
	} else {
		stats = service.NewSimulatedStats(model.BaselineStats(), rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	granularity, err := service.ParseGranularity(cfg.StatusGranularity)
	if err != nil {
		log.Fatal("status granularity", "error", err)
	}

	clk := clock.Real{Location: loc}
	scheduler := service.NewSchedulerService(loc, log.Named("cron"))
	updates := service.NewUpdateScheduler(store, stats, clk, scheduler, bus, service.UpdateConfig{
		StatsInterval:  cfg.StatsInterval,
		StatusInterval: cfg.StatusInterval,
		ClockInterval:  cfg.ClockInterval,
		RefreshDelay:   cfg.RefreshDelay,
		Granularity:    granularity,
	}, log.Named("updates"))

	if err := updates.Start(); err != nil {
		log.Fatal("start updates", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	defer updates.Stop()

	if cfg.TelegramToken == "" {
		log.Info("TELEGRAM_TOKEN is empty, running headless")
		<-ctx.Done()
		log.Info("shutdown complete")
		return
	}

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		Store:    store,
		Stats:    stats,
		Refresh:  updates,
		Clock:    clk,
		Location: loc,
		Log:      log.Named("bot"),
	})
	if err != nil {
		log.Fatal("bot", "error", err)
	}
	telegramBot.Subscribe(bus)

	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyDigest(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("daily digest", "error", err)
			}
		}); err != nil {
			log.Fatal("schedule digest", "error", err)
		}
	}

	log.Info("eventflow bot started", "storage", cfg.StorageDriver, "stats", cfg.StatsMode, "granularity", granularity)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("bot stopped with error", "error", err)
	}
	log.Info("shutdown complete")
}

// openStorage returns the key-value backend named by cfg and a func that
// releases it.
func openStorage(ctx context.Context, cfg config.Config, log *logger.Logger) (repository.KeyValueStore, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverRedis:
		rs, err := repository.NewRedisStore(ctx, cfg.RedisAddr, "eventflow:")
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case config.DriverMemory:
		return repository.NewMemoryStore(), func() {}, nil
	default:
		db, err := repository.NewDB(cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {}
		if sqlDB, err := db.DB(); err == nil {
			closeDB = func() { _ = sqlDB.Close() }
		}
		return repository.NewSQLStore(db), closeDB, nil
	}
}
