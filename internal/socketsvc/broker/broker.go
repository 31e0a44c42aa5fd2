package broker

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/comm"
)

type Broker struct {
	Conn    *nats.Conn
	Deliver func(*comm.WSMessage) bool
	Notify  func(*comm.Event) int

	LastHeartbeatMap   sync.Map // scratch instance id -> time.Time
	heartbeatThreshold time.Duration
}

func NewBroker(conn *nats.Conn, deliver func(*comm.WSMessage) bool, notify func(*comm.Event) int) *Broker {
	return &Broker{
		Conn:               conn,
		Deliver:            deliver,
		Notify:             notify,
		heartbeatThreshold: time.Second * 15,
	}
}

// Subscribe consumes scratch service replies. Every gateway instance sees every
// reply and drops the ones for sockets it does not hold.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(topic, b.handleMessages)
}

func (b *Broker) SubscribeEvents(topic string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(topic, b.handleEvent)
}

func (b *Broker) SubscribeHeartbeat(topic string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(topic, b.handleHeartbeat)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receives replies from the scratch service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.route(message)
}

func (b *Broker) route(message *comm.WSMessage) {
	if message.Type != comm.TypeError && !strings.HasSuffix(message.Type, "-response") {
		log.Warnf("unknown message %q from scratch service", message.Type)
		return
	}
	b.Deliver(message)
}

func (b *Broker) handleEvent(msgNats *nats.Msg) {
	ev := &comm.Event{}
	if err := json.Unmarshal(msgNats.Data, ev); err != nil {
		log.Errorf("Error decoding event: %s", err)
		return
	}
	b.Notify(ev)
}

func (b *Broker) handleHeartbeat(msgNats *nats.Msg) {
	hb := comm.ServiceHeartbeat{}
	if err := json.Unmarshal(msgNats.Data, &hb); err != nil {
		log.Errorf("Error decoding heartbeat: %s", err)
		return
	}
	b.LastHeartbeatMap.Store(hb.ID, time.Now())
}

// LiveServices counts scratch instances heard from within the threshold and forgets the rest.
func (b *Broker) LiveServices() int {
	live := 0
	cutoff := time.Now().Add(-b.heartbeatThreshold)
	b.LastHeartbeatMap.Range(func(key, value any) bool {
		if value.(time.Time).Before(cutoff) {
			b.LastHeartbeatMap.Delete(key)
			return true
		}
		live++
		return true
	})
	return live
}
