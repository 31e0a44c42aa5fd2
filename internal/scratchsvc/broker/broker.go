package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/comm"
	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
	"github.com/avvvet/scratch-services/internal/scratchsvc/service"
)

// Scratcher is the part of the service the broker drives.
type Scratcher interface {
	PurchaseCard(ctx context.Context, holderID, cardTypeID int64, opts service.PurchaseOptions) (*models.CardInstance, error)
	ScratchArea(ctx context.Context, instanceID string, area int, holderID int64) (*service.ScratchResult, error)
	ScratchAll(ctx context.Context, instanceID string, holderID int64) (*service.ScratchResult, error)
	ClaimPrize(ctx context.Context, instanceID string, holderID int64) (*service.ClaimResult, error)
	GetHolderCards(ctx context.Context, holderID int64, status *models.CardStatus) ([]*models.CardInstance, error)
	GetWallet(ctx context.Context, holderID int64) (models.Wallet, error)
}

type Users interface {
	GetOrCreateUser(ctx context.Context, userInfo models.User) (*models.User, error)
}

type Broker struct {
	Conn     *nats.Conn
	Service  Scratcher
	Users    Users
	Instance string
	Timeout  time.Duration
}

func NewBroker(nc *nats.Conn, svc Scratcher, users Users, instance string) *Broker {
	return &Broker{
		Conn:     nc,
		Service:  svc,
		Users:    users,
		Instance: instance,
		Timeout:  10 * time.Second,
	}
}

// handleMessage answers one gateway or robot message. Replies go to the request's
// reply subject when there is one, otherwise back to the gateway.
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
	defer cancel()

	resp := b.Handle(ctx, msg)
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("Error marshal %s response: %s", msg.Type, err)
		return
	}

	if msgNat.Reply != "" {
		if err := msgNat.Respond(payload); err != nil {
			log.Errorf("Error responding to %s: %s", msg.Type, err)
		}
		return
	}
	b.Publish(comm.SubjectScratchService, payload)
}

// Handle dispatches msg to the service and builds the reply envelope.
func (b *Broker) Handle(ctx context.Context, msg *comm.WSMessage) *comm.WSMessage {
	data, err := b.dispatch(ctx, msg)
	if err != nil {
		return errorMessage(msg, err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return errorMessage(msg, err)
	}
	return &comm.WSMessage{
		Type:     comm.ResponseType(msg.Type),
		Data:     raw,
		SocketId: msg.SocketId,
	}
}

func (b *Broker) dispatch(ctx context.Context, msg *comm.WSMessage) (any, error) {
	switch msg.Type {
	case comm.TypeInit:
		var req comm.InitRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		user, err := b.Users.GetOrCreateUser(ctx, models.User{
			UserId:      req.UserId,
			Name:        req.Name,
			Phone:       req.Phone,
			Email:       req.Email,
			Avatar:      req.Avatar,
			AgeVerified: req.AgeVerified,
		})
		if err != nil {
			return nil, err
		}
		w, err := b.Service.GetWallet(ctx, user.UserId)
		if err != nil {
			return nil, err
		}
		return comm.PlayerData{
			Name:   user.Name,
			UserId: user.UserId,
			Coins:  w.Coins.StringFixed(2),
			Gems:   w.Gems.StringFixed(2),
		}, nil

	case comm.TypeGetBalance:
		var req comm.UserRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		w, err := b.Service.GetWallet(ctx, req.UserId)
		if err != nil {
			return nil, err
		}
		return comm.PlayerData{UserId: req.UserId, Coins: w.Coins.StringFixed(2), Gems: w.Gems.StringFixed(2)}, nil

	case comm.TypePurchase:
		var req comm.PurchaseRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		card, err := b.Service.PurchaseCard(ctx, req.UserId, req.CardTypeId, service.PurchaseOptions{
			Currency: models.Currency(req.Currency),
		})
		if err != nil {
			return nil, err
		}
		return card.Masked(), nil

	case comm.TypeScratchArea:
		var req comm.ScratchRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Service.ScratchArea(ctx, req.CardId, req.Area, req.UserId)

	case comm.TypeScratchAll:
		var req comm.CardRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Service.ScratchAll(ctx, req.CardId, req.UserId)

	case comm.TypeClaimPrize:
		var req comm.CardRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Service.ClaimPrize(ctx, req.CardId, req.UserId)

	case comm.TypeGetCards:
		var req comm.CardsRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		var status *models.CardStatus
		if req.Status != "" {
			st := models.CardStatus(req.Status)
			status = &st
		}
		return b.Service.GetHolderCards(ctx, req.UserId, status)

	default:
		return nil, errs.E(errs.KindInvalidArgument, "unknown message type %q", msg.Type)
	}
}

func decode(msg *comm.WSMessage, v any) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return errs.Wrap(errs.KindInvalidArgument, err, "malformed %s payload", msg.Type)
	}
	return nil
}

func errorMessage(msg *comm.WSMessage, err error) *comm.WSMessage {
	kind := errs.KindOf(err)
	text := err.Error()
	if kind == errs.KindInternal {
		log.Errorf("Error handling %s: %s", msg.Type, err)
		text = "internal error"
	}
	raw, _ := json.Marshal(comm.ErrorData{Code: string(kind), Message: text})
	return &comm.WSMessage{
		Type:     comm.TypeError,
		Data:     raw,
		SocketId: msg.SocketId,
	}
}

// PublishEvent announces a committed state change on the events subject.
func (b *Broker) PublishEvent(eventType string, userID int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(comm.Event{
		Type:      eventType,
		UserId:    userID,
		Instance:  b.Instance,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return b.Publish(comm.SubjectScratchEvents, payload)
}

// consume messages from the gateway; the queue group spreads them over instances
func (b *Broker) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
