package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/auth"
	"github.com/avvvet/scratch-services/internal/comm"
	"github.com/avvvet/scratch-services/internal/socketsvc/ws"
)

type Handler struct {
	upgrader     websocket.Upgrader
	ws           *ws.Ws
	liveServices func() int
	port         string
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(s *ws.Ws, liveServices func() int, port string) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ws:           s,
		liveServices: liveServices,
		port:         port,
	}
	return h
}

// HandleWebSocket upgrades an authenticated request and relays its messages.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	holder, err := auth.HolderFromRequest(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.ws.StoreConnection(socketId, conn, holder)

	log.WithField("user", holder.ID).Infof("New WebSocket connection established: %s", socketId)

	go h.handleConnection(conn, socketId)
}

func (h *Handler) handleConnection(conn *websocket.Conn, socketId string) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		h.ws.HandleDisconnect(socketId)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			}
			return
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, message); err != nil {
			h.ws.SendError(socketId, "invalid_argument", "invalid message format")
			continue
		}

		if err := h.ws.SocketMessage(socketId, message); err != nil {
			code := "internal"
			if errors.Is(err, ws.ErrUnknownType) {
				code = "invalid_argument"
			}
			log.Warnf("socket %s: %s", socketId, err)
			h.ws.SendError(socketId, code, err.Error())
		}
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "socket service is running at port " + h.port,
		Code:    http.StatusOK,
		Data:    map[string]int{"scratch_services": h.liveServices()},
	})
}
