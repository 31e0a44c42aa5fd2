package comm

import (
	"encoding/json"
	"time"
)

// subjects
const (
	SubjectSocketService  = "socket.service"  // gateway -> scratch service
	SubjectScratchService = "scratch.service" // scratch service -> gateway
	SubjectScratchEvents  = "scratch.events"
	SubjectHeartbeat      = "service.heartbeat"
)

// message types accepted from clients
const (
	TypeInit        = "init"
	TypePurchase    = "purchase-card"
	TypeScratchArea = "scratch-area"
	TypeScratchAll  = "scratch-all"
	TypeClaimPrize  = "claim-prize"
	TypeGetCards    = "get-cards"
	TypeGetBalance  = "get-balance"
	TypeError       = "error"
)

// ClientTypes is the set of message types the gateway forwards.
var ClientTypes = map[string]bool{
	TypeInit:        true,
	TypePurchase:    true,
	TypeScratchArea: true,
	TypeScratchAll:  true,
	TypeClaimPrize:  true,
	TypeGetCards:    true,
	TypeGetBalance:  true,
}

func ResponseType(t string) string {
	return t + "-response"
}

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "init", "scratch-area"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

type ServiceHeartbeat struct {
	ID        string    `json:"id"` // service id
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// InitRequest is also the users row the scratch service creates on first contact.
type InitRequest struct {
	UserId      int64  `json:"user_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Avatar      string `json:"avatar"`
	AgeVerified bool   `json:"age_verified"`
}

type PlayerData struct {
	Name   string `json:"name"`
	UserId int64  `json:"user_id"`
	Coins  string `json:"coins"`
	Gems   string `json:"gems"`
}

type PurchaseRequest struct {
	UserId     int64  `json:"user_id"`
	CardTypeId int64  `json:"card_type_id"`
	Currency   string `json:"currency"`
}

type ScratchRequest struct {
	UserId int64  `json:"user_id"`
	CardId string `json:"card_id"`
	Area   int    `json:"area"`
}

type CardRequest struct {
	UserId int64  `json:"user_id"`
	CardId string `json:"card_id"`
}

type CardsRequest struct {
	UserId int64  `json:"user_id"`
	Status string `json:"status,omitempty"`
}

type UserRequest struct {
	UserId int64 `json:"user_id"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is published on SubjectScratchEvents after a state change commits.
type Event struct {
	Type      string          `json:"type"`
	UserId    int64           `json:"user_id"`
	Instance  string          `json:"instance"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
