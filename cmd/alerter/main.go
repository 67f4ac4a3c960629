package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/andresdiniz/wazeBR-sub001/internal/alert"
	"github.com/andresdiniz/wazeBR-sub001/internal/config"
	"github.com/andresdiniz/wazeBR-sub001/internal/mailer"
	"github.com/andresdiniz/wazeBR-sub001/internal/report"
	"github.com/andresdiniz/wazeBR-sub001/internal/store"
)

const alertChannel = "wazebr:alerts"

var (
	alertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_alerter_alerts_sent_total",
		Help: "Total number of alerts dispatched.",
	})
	alertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_alerter_alerts_suppressed_total",
		Help: "Total number of alerts suppressed by the cooldown gate.",
	})
	dispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_alerter_dispatch_failures_total",
		Help: "Total number of rows that failed during dispatch.",
	})
	alertsNoRecipients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_alerter_alerts_no_recipients_total",
		Help: "Total number of dispatched alerts that had no recipients.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wazebr_alerter_cycle_duration_seconds",
		Help:    "Duration of one alert dispatch cycle.",
		Buckets: prometheus.DefBuckets,
	})
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "alerter").Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := report.New(log)

	db, err := store.Open(ctx, cfg.Database.GetDSN(), rep)
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()
	db.GlobalPartnerID = cfg.Alerter.GlobalPartnerID

	sendTimeout := time.Duration(cfg.Alerter.SendTimeoutSec) * time.Second
	transport, err := mailer.New(cfg.SMTP, sendTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("smtp client init failed")
	}

	var publisher alert.Publisher
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, alerts will not be published")
		redisClient = nil
	} else {
		publisher = &redisPublisher{client: redisClient}
		defer redisClient.Close()
	}

	dispatcher := &alert.Dispatcher{
		Gate:        alert.NewGate(db, nil),
		Ledger:      db,
		Transport:   transport,
		Recipients:  db,
		Speeds:      db,
		Publisher:   publisher,
		Reporter:    rep,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.Alerter.SendRatePerSec), 1),
		SendTimeout: sendTimeout,
		Log:         log,
	}

	metricsAddr := getEnv("METRICS_ADDR", ":8082")
	go serveHTTP(log, metricsAddr, db)

	lookback := time.Duration(cfg.Alerter.LookbackMin) * time.Minute

	// The mutex keeps a slow cycle from overlapping the next cron tick.
	var mu sync.Mutex
	runCycle := func() {
		mu.Lock()
		defer mu.Unlock()

		start := time.Now()
		defer func() { cycleDuration.Observe(time.Since(start).Seconds()) }()

		batch, err := db.ActiveIrregularities(ctx, time.Now().Add(-lookback))
		if err != nil {
			log.Error().Err(err).Msg("active irregularity query failed, skipping cycle")
			return
		}

		sum := dispatcher.Run(ctx, batch)
		alertsSent.Add(float64(sum.Sent))
		alertsSuppressed.Add(float64(sum.Suppressed))
		dispatchFailures.Add(float64(sum.Failed))
		alertsNoRecipients.Add(float64(sum.NoRecipients))

		log.Info().
			Int("processed", sum.Processed).
			Int("sent", sum.Sent).
			Int("suppressed", sum.Suppressed).
			Int("skipped", sum.Skipped).
			Int("failed", sum.Failed).
			Int("no_recipients", sum.NoRecipients).
			Dur("took", time.Since(start)).
			Msg("dispatch cycle complete")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Alerter.CronSpec, runCycle); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Alerter.CronSpec).Msg("invalid cron spec")
	}
	scheduler.Start()

	log.Info().
		Str("cron", cfg.Alerter.CronSpec).
		Dur("lookback", lookback).
		Str("metrics_addr", metricsAddr).
		Msg("alerter running")

	runCycle()

	<-ctx.Done()
	log.Info().Msg("alerter shutting down")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
}

// redisPublisher pushes dispatched alerts onto the pub/sub channel the API
// streams to websocket clients.
type redisPublisher struct {
	client *redis.Client
}

func (p *redisPublisher) PublishAlert(ctx context.Context, evt alert.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, alertChannel, data).Err()
}

func serveHTTP(log zerolog.Logger, addr string, db *store.Store) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("metrics server failed")
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
