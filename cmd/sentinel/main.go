package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/config"
	"github.com/tg-sentinel-go/internal/engine"
	"github.com/tg-sentinel-go/internal/i18n"
	"github.com/tg-sentinel-go/internal/middleware"
	"github.com/tg-sentinel-go/internal/models"
	"github.com/tg-sentinel-go/internal/scheduler"
	"github.com/tg-sentinel-go/internal/services/ai"
	"github.com/tg-sentinel-go/internal/services/chat"
	"github.com/tg-sentinel-go/internal/services/notify"
	"github.com/tg-sentinel-go/internal/services/storage"
	"github.com/tg-sentinel-go/internal/worker"
	"github.com/tg-sentinel-go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting monitor engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := middleware.NewMetrics()

	store, err := storage.NewStore(&cfg.Storage, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	aiService := ai.NewOpenAIService(&cfg.AI, metrics, log)
	notifier := notify.NewEmailNotifier(&cfg.Email, log)
	limiter := middleware.NewSendLimiter(&cfg.RateLimit, log)
	pool := worker.NewPool(cfg.Dispatch.WorkerPoolSize, log)

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	registry := engine.NewRegistry(store, aiService, log)

	// Connect every configured account and register it with its client.
	bots := make(map[string]*tgbotapi.BotAPI)
	for _, acct := range cfg.Accounts {
		bot, err := tgbotapi.NewBotAPI(acct.Token)
		if err != nil {
			log.WithError(err).WithField("account_id", acct.ID).Fatal("Failed to connect account")
		}
		bot.Debug = cfg.Logging.Level == "debug"
		log.WithFields(logrus.Fields{
			"account_id": acct.ID,
			"username":   bot.Self.UserName,
		}).Info("Account authorized")

		client := chat.NewTelegramClient(bot, cfg.Dispatch.DownloadFolder, log)
		registry.RegisterAccount(&models.Account{
			ID:            acct.ID,
			SelfID:        client.SelfID(),
			MonitorActive: acct.MonitorActive,
		}, client)
		bots[acct.ID] = bot
	}

	if err := registry.Load(ctx); err != nil {
		log.WithError(err).Error("Failed to restore monitors")
	}
	metrics.SetActiveMonitors(float64(registry.ActiveMonitorCount()))

	forwarder := engine.NewForwarder(log)
	executor := engine.NewExecutor(registry, forwarder, notifier, localizer,
		cfg.I18n.DefaultLanguage, aiService, limiter, pool, metrics, log)
	dedup := engine.NewDedup(cfg.Dispatch.DedupLimit)
	dispatcher := engine.NewDispatcher(registry, dedup, executor, metrics, log)

	sched := scheduler.New(registry, store, aiService, limiter, metrics, log)
	if err := sched.Restore(ctx); err != nil {
		log.WithError(err).Error("Failed to restore scheduled messages")
	}
	sched.Start()

	// One update loop per account.
	var wg sync.WaitGroup
	for _, acct := range cfg.Accounts {
		acct := acct
		bot := bots[acct.ID]

		u := tgbotapi.NewUpdate(0)
		u.Timeout = acct.UpdateTimeout
		if u.Timeout == 0 {
			u.Timeout = 60
		}
		updates := bot.GetUpdatesChan(u)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case update, ok := <-updates:
					if !ok {
						return
					}
					msg := chat.MessageFromUpdate(&update)
					if msg == nil {
						continue
					}
					// Each dispatch gets its own goroutine so a reply delay
					// on one message never stalls the account's update loop.
					go dispatcher.HandleMessage(ctx, acct.ID, msg)
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received")

	sched.Stop()
	for _, bot := range bots {
		bot.StopReceivingUpdates()
	}
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Worker pool did not drain in time")
	}

	log.Info("Monitor engine stopped")
}
