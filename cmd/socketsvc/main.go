package main

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/joeshaw/envdecode"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/scratch-services/configs"
	"github.com/avvvet/scratch-services/internal/auth"
	"github.com/avvvet/scratch-services/internal/comm"
	"github.com/avvvet/scratch-services/internal/nats"
	"github.com/avvvet/scratch-services/internal/socketsvc/broker"
	"github.com/avvvet/scratch-services/internal/socketsvc/handlers"
	"github.com/avvvet/scratch-services/internal/socketsvc/routes"
	"github.com/avvvet/scratch-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

type socketConfig struct {
	NatsURL   string `env:"NATS_URL"`
	NatsToken string `env:"NATS_TOKEN"`
	Port      string `env:"SOCKET_SERVICE_PORT,default=8081"`
	RateLimit int    `env:"RATE_LIMIT,default=100"`
	JWTSecret string `env:"JWT_SECRET_KEY"`
}

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	var cfg socketConfig
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		log.Fatalf("Invalid configuration: %v", err)
	}

	tokenAuth, err := auth.New(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Invalid JWT configuration: %v", err)
	}

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// the broker publishes through its own connection; ws only sees the func
	b := broker.NewBroker(n.Conn, nil, nil)
	s := ws.NewWs(b.Publish)
	b.Deliver = s.Deliver
	b.Notify = s.Notify

	// replies from the scratch service
	subReplies, err := b.Subscribe(comm.SubjectScratchService)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.SubjectScratchService, err)
	}

	// committed card events, pushed to the holder's sockets
	subEvents, err := b.SubscribeEvents(comm.SubjectScratchEvents)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.SubjectScratchEvents, err)
	}

	subHeartbeat, err := b.SubscribeHeartbeat(comm.SubjectHeartbeat)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.SubjectHeartbeat, err)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(s, b.LiveServices, cfg.Port)
	routes.SetRoutes(r, h, tokenAuth)

	config.Serve(SERVICE_NAME, config.NewServer(cfg.Port, r), func() {
		subReplies.Unsubscribe()
		subEvents.Unsubscribe()
		subHeartbeat.Unsubscribe()
	})
}
