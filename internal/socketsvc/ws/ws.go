package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/auth"
	"github.com/avvvet/scratch-services/internal/comm"
)

// Publisher forwards a client message to the scratch service.
type Publisher func(topic string, payload []byte) error

var ErrUnknownType = errors.New("unknown message type")

// client serialises writes; gorilla allows one concurrent writer per connection.
type client struct {
	conn        *websocket.Conn
	userID      int64
	ageVerified bool
	mu          sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
	publish Publisher
}

func NewWs(publish Publisher) *Ws {
	return &Ws{publish: publish}
}

// StoreConnection binds an authenticated holder to a socket.
func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn, holder auth.Holder) {
	s.connMap.Store(socketId, &client{conn: conn, userID: holder.ID, ageVerified: holder.AgeVerified})
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

func (s *Ws) getClient(socketId string) (*client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*client), true
}

// SocketMessage forwards an allowed client message to the scratch service. The
// user_id and age_verified fields of the payload always come from the token.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) error {
	if !comm.ClientTypes[message.Type] {
		return fmt.Errorf("%w: %q", ErrUnknownType, message.Type)
	}
	c, ok := s.getClient(socketId)
	if !ok {
		return fmt.Errorf("socket %s is not registered", socketId)
	}

	data, err := stampHolder(message.Data, c)
	if err != nil {
		return fmt.Errorf("malformed %s payload: %w", message.Type, err)
	}

	out := comm.WSMessage{Type: message.Type, Data: data, SocketId: socketId}
	bytes, err := json.Marshal(out)
	if err != nil {
		return err
	}

	if err := s.publish(comm.SubjectSocketService, bytes); err != nil {
		return fmt.Errorf("publish %s: %w", message.Type, err)
	}
	log.WithFields(log.Fields{"socket": socketId, "user": c.userID}).Debugf("forwarded %s", message.Type)
	return nil
}

func stampHolder(raw json.RawMessage, c *client) (json.RawMessage, error) {
	payload := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
	}
	payload[auth.ClaimUserID] = c.userID
	payload[auth.ClaimAgeVerified] = c.ageVerified
	return json.Marshal(payload)
}

// Deliver sends a scratch service reply to the socket that asked.
func (s *Ws) Deliver(m *comm.WSMessage) bool {
	c, ok := s.getClient(m.SocketId)
	if !ok {
		return false
	}
	if err := c.send(m); err != nil {
		log.Warnf("write to socket %s failed: %s", m.SocketId, err)
		return false
	}
	return true
}

// Notify pushes an event to every socket the holder has open and returns how many got it.
func (s *Ws) Notify(ev *comm.Event) int {
	msg := comm.WSMessage{Type: ev.Type, Data: ev.Data}
	sent := 0
	s.connMap.Range(func(key, value any) bool {
		c := value.(*client)
		if c.userID != ev.UserId {
			return true
		}
		if err := c.send(msg); err != nil {
			log.Warnf("write event to socket %s failed: %s", key, err)
			return true
		}
		sent++
		return true
	})
	return sent
}

// SendError reports a rejected message back to its socket.
func (s *Ws) SendError(socketId, code, message string) {
	raw, _ := json.Marshal(comm.ErrorData{Code: code, Message: message})
	s.Deliver(&comm.WSMessage{Type: comm.TypeError, Data: raw, SocketId: socketId})
}
