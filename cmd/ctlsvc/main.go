package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/scratch-services/configs"
	"github.com/avvvet/scratch-services/internal/metrics"
	natscli "github.com/avvvet/scratch-services/internal/nats"
	"github.com/avvvet/scratch-services/internal/scratchsvc/broker"
	"github.com/avvvet/scratch-services/internal/scratchsvc/catalog"
	svcconfig "github.com/avvvet/scratch-services/internal/scratchsvc/config"
	"github.com/avvvet/scratch-services/internal/scratchsvc/db"
	"github.com/avvvet/scratch-services/internal/scratchsvc/service"
	"github.com/avvvet/scratch-services/internal/scratchsvc/store"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := svcconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.RequirePostgres(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// pg connection
	dbpool, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbpool.Close()
	log.Printf("pg connection established successfully")

	if err := store.EnsureSchema(ctx, dbpool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	if err := seedCatalog(ctx, dbpool, cfg.CatalogFile); err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}

	// Connect to NATS
	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// only the event side of the broker is used here
	events := broker.NewBroker(n.Conn, nil, nil, instanceId)
	svc := service.NewService(store.NewRepository(dbpool), store.NewUserStore(dbpool), service.Options{
		Events:  events,
		Metrics: metrics.Recorder{},
	})

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if _, err := c.AddFunc("@every 1m", func() { expireCards(svc) }); err != nil {
		log.Fatalf("schedule expiry sweep: %v", err)
	}
	if _, err := c.AddFunc("0 0 * * *", func() { resetDailyCounters(svc) }); err != nil {
		log.Fatalf("schedule daily reset: %v", err)
	}

	// catch up after downtime
	expireCards(svc)
	resetDailyCounters(svc)

	c.Start()
	log.Infof("%s service scheduled %d jobs", SERVICE_NAME, len(c.Entries()))

	metricsAddr := ":" + envOr("CTL_METRICS_PORT", "9102")
	go func() {
		if err := http.ListenAndServe(metricsAddr, metrics.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics listener: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	<-c.Stop().Done()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func expireCards(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := svc.ExpireCards(ctx, time.Now())
	if err != nil {
		log.Errorf("expire cards: %v", err)
		return
	}
	if n > 0 {
		log.Infof("expired %d overdue cards", n)
	}
}

func resetDailyCounters(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := svc.ResetDailyCounters(ctx, time.Now())
	if err != nil {
		log.Errorf("reset daily counters: %v", err)
		return
	}
	log.Infof("reset daily win counters on %d prize tiers", n)
}

// seedCatalog upserts the catalog file in one transaction. A missing file is not an error.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool, path string) error {
	if path == "" {
		return nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("catalog file %s not found, skipping seed", path)
			return nil
		}
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return cat.Seed(ctx, store.NewCardTypeStore(tx), store.NewPrizeTierStore(tx))
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
