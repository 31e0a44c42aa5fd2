package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	config "github.com/avvvet/scratch-services/configs"
	"github.com/avvvet/scratch-services/internal/comm"
	natscli "github.com/avvvet/scratch-services/internal/nats"
	svcconfig "github.com/avvvet/scratch-services/internal/scratchsvc/config"
	"github.com/avvvet/scratch-services/internal/scratchsvc/db"
	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
	"github.com/avvvet/scratch-services/internal/scratchsvc/service"
	"github.com/avvvet/scratch-services/internal/scratchsvc/store"
)

const SERVICE_NAME = "robot"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

var robotNames = []string{
	"Abelo", "meron bekele", "dawit", "mulugeta", "ted",
	"yonas", "liya", "Bereket Alemu", "Eden", "Samuel Yimer",
}

// robot plays cards through the same NATS subject the socket gateway uses.
type robot struct {
	userID   int64
	cardType int64
	nc       *natscli.Nats
	limiter  *rate.Limiter
	topUp    func(ctx context.Context, userID int64) error
}

func main() {
	cfg, err := svcconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.RequirePostgres(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dbpool, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbpool.Close()
	log.Printf("pg connection established successfully")

	nc, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"-"+instanceId)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Infof("NATS connected at %s", nc.Url)

	users := service.NewUserService(store.NewUserStore(dbpool))
	balances := store.NewBalanceStore(dbpool)
	topUpAmount := decimal.NewFromInt(cfg.RobotTopUp)

	// one deposit per robot per day; the unique tref makes reruns harmless
	topUp := func(ctx context.Context, userID int64) error {
		tref := fmt.Sprintf("ROBOT-%d-%s", userID, time.Now().UTC().Format("20060102"))
		err := balances.Credit(ctx, userID, models.CurrencyCoins, topUpAmount, models.TTypeDeposit, tref)
		if errs.Is(err, errs.KindConflict) {
			return nil
		}
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.RobotCount; i++ {
		userID := cfg.RobotUserIDBase + int64(i)
		if _, err := users.GetOrCreateUser(ctx, models.User{
			UserId:      userID,
			Name:        robotNames[i%len(robotNames)],
			Email:       fmt.Sprintf("%d@robots.local", userID),
			AgeVerified: true,
		}); err != nil {
			log.Fatalf("Failed to ensure robot account %d: %v", userID, err)
		}
		if err := topUp(ctx, userID); err != nil {
			log.Errorf("Failed to top up robot %d: %v", userID, err)
		}

		r := &robot{
			userID:   userID,
			cardType: cfg.RobotCardType,
			nc:       nc,
			limiter:  rate.NewLimiter(rate.Limit(cfg.RobotRate), 1),
			topUp:    topUp,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.run(ctx)
		}()
	}
	log.Infof("%d robots playing card type %d", cfg.RobotCount, cfg.RobotCardType)

	wg.Wait()
	log.Infof("%s service stopped", SERVICE_NAME)
}

func (r *robot) run(ctx context.Context) {
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if err := r.playOne(ctx); err != nil {
			switch errs.KindOf(err) {
			case errs.KindInsufficientFunds:
				if err := r.topUp(ctx, r.userID); err != nil {
					log.Errorf("robot %d top up: %v", r.userID, err)
				}
			case errs.KindLimitExceeded:
				// the daily cap resets at midnight; nothing to do until then
				log.Infof("robot %d reached its purchase limit", r.userID)
			default:
				log.Warnf("robot %d: %v", r.userID, err)
			}
		}
	}
}

// playOne buys a card, reveals it in one go and claims when it won.
func (r *robot) playOne(ctx context.Context) error {
	var card models.CardInstance
	if err := r.request(ctx, comm.TypePurchase, comm.PurchaseRequest{
		UserId:     r.userID,
		CardTypeId: r.cardType,
		Currency:   string(models.CurrencyCoins),
	}, &card); err != nil {
		return err
	}

	var res service.ScratchResult
	if err := r.request(ctx, comm.TypeScratchAll, comm.CardRequest{UserId: r.userID, CardId: card.ID}, &res); err != nil {
		return err
	}
	if res.Instance == nil || !res.Instance.Outcome.IsWinner {
		return nil
	}

	var claim service.ClaimResult
	if err := r.request(ctx, comm.TypeClaimPrize, comm.CardRequest{UserId: r.userID, CardId: card.ID}, &claim); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"robot": r.userID,
		"card":  card.ID,
		"coins": claim.PayoutCoins.String(),
		"gems":  claim.PayoutGems.String(),
	}).Info("robot claimed prize")
	return nil
}

// request sends one message and decodes the reply; error replies come back as *errs.Error.
func (r *robot) request(ctx context.Context, msgType string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(comm.WSMessage{Type: msgType, Data: data})
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reply, err := r.nc.Conn.RequestWithContext(reqCtx, comm.SubjectSocketService, body)
	if err != nil {
		return fmt.Errorf("%s request: %w", msgType, err)
	}

	var msg comm.WSMessage
	if err := json.Unmarshal(reply.Data, &msg); err != nil {
		return fmt.Errorf("%s reply: %w", msgType, err)
	}
	if msg.Type == comm.TypeError {
		var e comm.ErrorData
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return fmt.Errorf("%s error reply: %w", msgType, err)
		}
		return errs.E(errs.Kind(e.Code), "%s", e.Message)
	}
	return json.Unmarshal(msg.Data, out)
}
