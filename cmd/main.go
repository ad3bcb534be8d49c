package main

import (
	"context"
	"crypto-alert-bot/config"
	"crypto-alert-bot/internal/alert"
	"crypto-alert-bot/internal/api"
	"crypto-alert-bot/internal/database"
	"crypto-alert-bot/internal/metrics"
	"crypto-alert-bot/internal/price"
	"crypto-alert-bot/internal/server"
	"crypto-alert-bot/internal/telegram"
	"crypto-alert-bot/lib/translation"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leonelquinteros/gotext"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")
	log.Debugf("Bot language: %s", translation.GetLanguage())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	botMetrics := metrics.New(prometheus.DefaultRegisterer)
	botMetrics.LoadFromDB(ctx, store)

	market, err := newMarketSource()
	if err != nil {
		log.Fatalf("Failed to create market data source: %v", err)
	}

	service := alert.NewService(store, market, alert.WithRecorder(botMetrics))

	var notifier alert.Notifier
	var bot *telegram.Bot
	if token := config.GetString("telegram_bot_token"); token != "" {
		bot, err = telegram.NewBot(telegram.BotConfig{
			Token:          token,
			Debug:          config.GetBool("debug"),
			UpdatesTimeout: 60,
		}, service, botMetrics)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		notifier = bot
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, running without the chat bot")
	}

	monitor := alert.NewMonitor(service, notifier, config.GetDuration("check_interval"))

	handler, err := api.NewHandler(service, monitor)
	if err != nil {
		log.Fatalf("Failed to create API handler: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		monitor.Run(ctx)
		return nil
	})

	if bot != nil {
		updates, err := bot.GetUpdatesChannel()
		if err != nil {
			log.Fatalf("Failed to get updates channel: %v", err)
		}
		g.Go(func() error {
			bot.Listen(ctx, updates)
			bot.Bot.StopReceivingUpdates()
			return nil
		})
	}

	g.Go(func() error {
		saveMetricsPeriodically(ctx, botMetrics, store, config.GetDuration("metrics_save_interval"))
		return nil
	})

	g.Go(func() error {
		return server.Run(ctx, "alerts API", fmt.Sprintf(":%d", config.GetInt("http_port")), handler.Routes())
	})

	g.Go(func() error {
		return server.Run(ctx, "metrics and health endpoint", fmt.Sprintf(":%d", config.GetInt("metrics_port")),
			metrics.NewRouter(prometheus.DefaultGatherer))
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Shutting down after failure")
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := botMetrics.SaveToDB(saveCtx, store); err == nil {
		log.Info("Metrics saved, shutting down...")
	}
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting crypto alert bot...")
}

func newMarketSource() (price.Source, error) {
	timeout := config.GetDuration("fetch_timeout")

	var src price.Source
	switch strings.ToLower(config.GetString("market_source")) {
	case "binance", "":
		src = price.NewBinanceSource(config.GetString("binance_base_url"), timeout)
	case "coinpaprika", "paprika":
		src = price.NewPaprikaSource(config.GetString("api_pro_key"), &http.Client{Timeout: timeout})
	default:
		return nil, errors.Errorf("unknown market source %q", config.GetString("market_source"))
	}

	log.Infof("Using %s market data, fetch timeout %s", config.GetString("market_source"), timeout)
	return price.WithTimeout(src, timeout), nil
}

func saveMetricsPeriodically(ctx context.Context, m *metrics.Metrics, store metrics.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SaveToDB(ctx, store); err != nil {
				log.WithError(err).Warn("Periodic metrics save failed, retrying next interval")
			}
		}
	}
}
