package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/scratch-services/configs"
	"github.com/avvvet/scratch-services/internal/audit"
	"github.com/avvvet/scratch-services/internal/auth"
	"github.com/avvvet/scratch-services/internal/comm"
	mongodb "github.com/avvvet/scratch-services/internal/db"
	"github.com/avvvet/scratch-services/internal/metrics"
	nats "github.com/avvvet/scratch-services/internal/nats"
	"github.com/avvvet/scratch-services/internal/scratchsvc/broker"
	svcconfig "github.com/avvvet/scratch-services/internal/scratchsvc/config"
	"github.com/avvvet/scratch-services/internal/scratchsvc/db"
	handlers "github.com/avvvet/scratch-services/internal/scratchsvc/handlers"
	"github.com/avvvet/scratch-services/internal/scratchsvc/service"
	"github.com/avvvet/scratch-services/internal/scratchsvc/store"
)

const SERVICE_NAME = "scratch"

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

	repo := store.NewRepository(dbpool)
	userStore := store.NewUserStore(dbpool)
	userService := service.NewUserService(userStore)

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// the broker answers the gateway and publishes card events
	b := broker.NewBroker(n.Conn, nil, userService, instanceId)

	opts := service.Options{
		CardTTL:           cfg.CardTTL,
		Policy:            cfg.Policy(),
		MaxFillerAttempts: cfg.MaxFillerAttempts,
		Events:            b,
		Metrics:           metrics.Recorder{},
	}

	if cfg.MongoURI != "" {
		mdb, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		if err := mongodb.CreateTTLIndexForCollection(ctx, mdb, audit.CollectionName); err != nil {
			log.Warnf("commitment archive ttl index: %v", err)
		}
		opts.Archive = audit.NewArchive(mdb, instanceId, cfg.AuditRetention)
		log.Printf("commitment archive enabled on %s", mdb.Name())
	} else {
		log.Warn("MONGODB_URI not set, commitment archive disabled")
	}

	svc := service.NewService(repo, userStore, opts)
	b.Service = svc

	sub, err := b.QueueSubscribe(comm.SubjectSocketService, SERVICE_NAME)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to queue %v", err)
	}

	stopHeartbeat := make(chan struct{})
	go heartbeat(b, stopHeartbeat)

	tokenAuth, err := auth.New(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Invalid JWT configuration: %v", err)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.InstrumentHandler)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(svc, tokenAuth, cfg.Port)
	h.SetRoutes(r)

	config.Serve(SERVICE_NAME, config.NewServer(cfg.Port, r), func() {
		close(stopHeartbeat)
		sub.Unsubscribe()
	})
}

// heartbeat lets the gateways know this instance is alive.
func heartbeat(b *broker.Broker, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			payload, err := json.Marshal(comm.ServiceHeartbeat{ID: instanceId, Service: SERVICE_NAME, Timestamp: t.UTC()})
			if err != nil {
				log.Errorf("heartbeat marshal: %v", err)
				continue
			}
			b.Publish(comm.SubjectHeartbeat, payload)
		}
	}
}
