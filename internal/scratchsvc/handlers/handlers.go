package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/auth"
	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
	"github.com/avvvet/scratch-services/internal/scratchsvc/service"
)

type Service interface {
	PurchaseCard(ctx context.Context, holderID, cardTypeID int64, opts service.PurchaseOptions) (*models.CardInstance, error)
	ScratchArea(ctx context.Context, instanceID string, area int, holderID int64) (*service.ScratchResult, error)
	ScratchAll(ctx context.Context, instanceID string, holderID int64) (*service.ScratchResult, error)
	ClaimPrize(ctx context.Context, instanceID string, holderID int64) (*service.ClaimResult, error)
	GetHolderCards(ctx context.Context, holderID int64, status *models.CardStatus) ([]*models.CardInstance, error)
	GetCard(ctx context.Context, instanceID string, holderID int64) (*models.CardInstance, error)
	VerifyCard(ctx context.Context, instanceID string) (*service.Verification, error)
	GetWallet(ctx context.Context, holderID int64) (models.Wallet, error)
}

type Handler struct {
	svc       Service
	tokenAuth *jwtauth.JWTAuth
	port      string
}

func NewHandler(svc Service, tokenAuth *jwtauth.JWTAuth, port string) *Handler {
	return &Handler{svc: svc, tokenAuth: tokenAuth, port: port}
}

type Response struct {
	Message string      `json:"message,omitempty"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	msg := err.Error()
	if kind == errs.KindInternal {
		log.WithField("path", r.URL.Path).Errorf("request failed: %s", err)
		msg = "internal error"
	}
	writeJSON(w, errs.HTTPStatus(kind), ErrorResponse{Code: string(kind), Message: msg})
}

type holderKey struct{}

// Holder reads the user_id claim the Authenticator already verified.
func (h *Handler) Holder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.FromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Code: "unauthorized", Message: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), holderKey{}, id)))
	})
}

func holderID(r *http.Request) int64 {
	id, _ := r.Context().Value(holderKey{}).(int64)
	return id
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.KindInvalidArgument, err, "malformed request body")
	}
	return nil
}

type purchaseRequest struct {
	CardTypeID int64           `json:"card_type_id"`
	Currency   models.Currency `json:"currency"`
}

func (h *Handler) PurchaseCard(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CardTypeID <= 0 {
		writeError(w, r, errs.E(errs.KindInvalidArgument, "card_type_id is required"))
		return
	}

	card, err := h.svc.PurchaseCard(r.Context(), holderID(r), req.CardTypeID, service.PurchaseOptions{Currency: req.Currency})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card.Masked())
}

type scratchRequest struct {
	Area *int `json:"area"`
}

func (h *Handler) ScratchArea(w http.ResponseWriter, r *http.Request) {
	var req scratchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Area == nil {
		writeError(w, r, errs.E(errs.KindInvalidArgument, "area is required"))
		return
	}

	res, err := h.svc.ScratchArea(r.Context(), chi.URLParam(r, "id"), *req.Area, holderID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ScratchAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ScratchAll(r.Context(), chi.URLParam(r, "id"), holderID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ClaimPrize(r.Context(), chi.URLParam(r, "id"), holderID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	var status *models.CardStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := models.CardStatus(v)
		status = &st
	}

	cards, err := h.svc.GetHolderCards(r.Context(), holderID(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.GetCard(r.Context(), chi.URLParam(r, "id"), holderID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// VerifyCard is scoped to the holder's own cards.
func (h *Handler) VerifyCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.GetCard(r.Context(), id, holderID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.VerifyCard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.svc.GetWallet(r.Context(), holderID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"coins": wallet.Coins.StringFixed(2),
		"gems":  wallet.Gems.StringFixed(2),
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Message: "scratch service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}
