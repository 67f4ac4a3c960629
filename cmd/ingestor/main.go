package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/andresdiniz/wazeBR-sub001/internal/config"
	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
	"github.com/andresdiniz/wazeBR-sub001/internal/report"
	"github.com/andresdiniz/wazeBR-sub001/internal/store"
)

var (
	snapshotsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_ingestor_snapshots_fetched_total",
		Help: "Total number of feed snapshots fetched successfully.",
	})
	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_ingestor_fetch_failures_total",
		Help: "Total number of feed fetches that failed.",
	})
	rowsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_ingestor_rows_stored_total",
		Help: "Total number of feed rows upserted into Postgres.",
	})
	rowsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wazebr_ingestor_rows_failed_total",
		Help: "Total number of feed rows rejected or failed to store.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wazebr_ingestor_cycle_duration_seconds",
		Help:    "Duration of one full ingestion cycle across all feed sources.",
		Buckets: prometheus.DefBuckets,
	})
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "ingestor").Logger()

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

	metricsAddr := getEnv("METRICS_ADDR", ":8081")
	go serveHTTP(log, metricsAddr, db)

	client := feed.NewClient(time.Duration(cfg.Feed.FetchTimeoutSec) * time.Second)

	var mqttClient mqtt.Client
	if cfg.Feed.MQTTURL != "" {
		mqttClient = startMQTT(ctx, log, cfg, db)
		defer mqttClient.Disconnect(250)
	}

	log.Info().
		Int("poll_interval_sec", cfg.Feed.PollIntervalSec).
		Str("metrics_addr", metricsAddr).
		Msg("ingestor running")

	ticker := time.NewTicker(time.Duration(cfg.Feed.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	runCycle(ctx, log, client, db)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("ingestor shutting down")
			return
		case <-ticker.C:
			runCycle(ctx, log, client, db)
		}
	}
}

// runCycle polls every configured feed source once. A failing source is
// reported and the rest of the cycle continues.
func runCycle(ctx context.Context, log zerolog.Logger, client *feed.Client, db *store.Store) {
	start := time.Now()
	defer func() { cycleDuration.Observe(time.Since(start).Seconds()) }()

	sources, err := db.FeedSources(ctx)
	if err != nil {
		log.Error().Err(err).Msg("feed source list failed, skipping cycle")
		return
	}
	if len(sources) == 0 {
		log.Warn().Msg("no feed sources configured")
		return
	}

	for _, src := range sources {
		snapshot, err := client.Fetch(ctx, src.URL, src.PartnerID)
		if err != nil {
			fetchFailures.Inc()
			log.Error().Err(err).Str("source_url", src.URL).Msg("feed fetch failed")
			continue
		}
		snapshotsFetched.Inc()
		storeSnapshot(ctx, db, snapshot)
	}

	log.Info().
		Int("sources", len(sources)).
		Dur("took", time.Since(start)).
		Msg("ingestion cycle complete")
}

func storeSnapshot(ctx context.Context, db *store.Store, snapshot *feed.Snapshot) {
	stored, failed := db.UpsertIrregularities(ctx, snapshot.Irregularities)
	s, f := db.UpsertRoutes(ctx, snapshot.Routes)
	stored, failed = stored+s, failed+f
	s, f = db.UpsertUserJams(ctx, snapshot.UserJams)
	stored, failed = stored+s, failed+f

	rowsStored.Add(float64(stored))
	rowsFailed.Add(float64(failed))
}

// mqttEnvelope is the push-path payload: a snapshot plus the source it
// belongs to, since MQTT messages carry no originating URL.
type mqttEnvelope struct {
	SourceURL string        `json:"sourceUrl"`
	PartnerID int           `json:"idParceiro"`
	Snapshot  feed.Snapshot `json:"snapshot"`
}

func startMQTT(ctx context.Context, log zerolog.Logger, cfg *config.Config, db *store.Store) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Feed.MQTTURL)
	opts.SetClientID("ingestor-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(client mqtt.Client, message mqtt.Message) {
		var env mqttEnvelope
		if err := json.Unmarshal(message.Payload(), &env); err != nil {
			log.Error().Err(err).Msg("invalid mqtt payload")
			return
		}
		if env.SourceURL == "" {
			log.Error().Msg("mqtt payload missing source url")
			return
		}
		env.Snapshot.Stamp(env.SourceURL, env.PartnerID)
		storeSnapshot(ctx, db, &env.Snapshot)
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(cfg.Feed.MQTTTopic, 0, nil)
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Msg("mqtt subscribe failed")
			return
		}
		log.Info().Str("topic", cfg.Feed.MQTTTopic).Msg("ingestor subscribed")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connection failed")
	}
	return client
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
