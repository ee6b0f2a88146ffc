package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"masterpay/internal/ledger"
	"masterpay/internal/models"
	"masterpay/internal/resolver"
	"masterpay/internal/store"
)

type Handler struct {
	Ledger   *ledger.Ledger
	Resolver *resolver.Resolver
}

func NewHandler(l *ledger.Ledger, r *resolver.Resolver) *Handler {
	return &Handler{Ledger: l, Resolver: r}
}

type openPaymentRequest struct {
	OrderID       string `json:"orderId"`
	MasterID      string `json:"masterId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
	Description   string `json:"description"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type resolveRequest struct {
	Decision      string `json:"decision"`
	Justification string `json:"justification"`
}

type paymentResponse struct {
	ID                  string `json:"id"`
	OrderID             string `json:"orderId"`
	ClientID            string `json:"clientId"`
	MasterID            string `json:"masterId"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	PlatformFeePercent  string `json:"platformFeePercent"`
	PlatformFeeAmount   string `json:"platformFeeAmount"`
	MasterReceiveAmount string `json:"masterReceiveAmount"`
	Status              string `json:"status"`
	ClientConfirmed     bool   `json:"clientConfirmed"`
	ClientConfirmedAt   string `json:"clientConfirmedAt,omitempty"`
	MasterConfirmed     bool   `json:"masterConfirmed"`
	MasterConfirmedAt   string `json:"masterConfirmedAt,omitempty"`
	PaymentMethod       string `json:"paymentMethod"`
	CaptureRef          string `json:"captureRef,omitempty"`
	CreatedAt           string `json:"createdAt"`
	ExpiresAt           string `json:"expiresAt"`
	ReleasedAt          string `json:"releasedAt,omitempty"`
	RefundedAt          string `json:"refundedAt,omitempty"`
	Description         string `json:"description,omitempty"`
	DisputeReason       string `json:"disputeReason,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

func toPaymentResponse(p *models.EscrowPayment) paymentResponse {
	resp := paymentResponse{
		ID:                  p.ID,
		OrderID:             p.OrderID,
		ClientID:            p.ClientID,
		MasterID:            p.MasterID,
		Amount:              p.Amount.String(),
		Currency:            string(p.Currency),
		PlatformFeePercent:  p.PlatformFeePercent.String(),
		PlatformFeeAmount:   p.PlatformFeeAmount.String(),
		MasterReceiveAmount: p.MasterReceiveAmount.String(),
		Status:              string(p.Status),
		ClientConfirmed:     p.ClientConfirmed,
		MasterConfirmed:     p.MasterConfirmed,
		PaymentMethod:       string(p.PaymentMethod),
		CaptureRef:          p.CaptureRef,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
		ExpiresAt:           p.ExpiresAt.Format(time.RFC3339),
		Description:         p.Description,
		DisputeReason:       p.DisputeReason,
		Notes:               p.Notes,
	}
	if p.ClientConfirmedAt != nil {
		resp.ClientConfirmedAt = p.ClientConfirmedAt.Format(time.RFC3339)
	}
	if p.MasterConfirmedAt != nil {
		resp.MasterConfirmedAt = p.MasterConfirmedAt.Format(time.RFC3339)
	}
	if p.ReleasedAt != nil {
		resp.ReleasedAt = p.ReleasedAt.Format(time.RFC3339)
	}
	if p.RefundedAt != nil {
		resp.RefundedAt = p.RefundedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) OpenPayment(w http.ResponseWriter, r *http.Request) {
	var req openPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	clientID := r.Header.Get("X-User-Id")
	if clientID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	p, err := h.Ledger.Open(r.Context(), ledger.OpenParams{
		OrderID:       req.OrderID,
		ClientID:      clientID,
		MasterID:      req.MasterID,
		Amount:        amount,
		Currency:      models.Currency(req.Currency),
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Description:   req.Description,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	p, err := h.Ledger.Get(r.Context(), paymentID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if orderID := r.URL.Query().Get("orderId"); orderID != "" {
		payments, err := h.Ledger.ListByOrder(r.Context(), orderID)
		if err != nil {
			h.writeLedgerError(w, err)
			return
		}
		writeListResponse(w, payments)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.Header.Get("X-User-Id")
	}
	role := store.Role(r.URL.Query().Get("role"))
	if userID == "" || (role != store.RoleClient && role != store.RoleMaster) {
		writeError(w, http.StatusBadRequest, "orderId or userId+role is required")
		return
	}
	payments, err := h.Ledger.ListByUser(r.Context(), userID, role)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeListResponse(w, payments)
}

func writeListResponse(w http.ResponseWriter, payments []*models.EscrowPayment) {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// ConfirmPayment handles the ClientPays transition: funds are captured and
// the record moves to awaiting_master.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.Ledger.ClientPays)
}

// ConfirmWork handles the MasterConfirms transition.
func (h *Handler) ConfirmWork(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.Ledger.MasterConfirms)
}

// ApproveWork handles the ClientApproves transition: funds release to the
// master.
func (h *Handler) ApproveWork(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.Ledger.ClientApproves)
}

func (h *Handler) applyTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, paymentID, callerID string) (*models.EscrowPayment, error)) {
	paymentID := chi.URLParam(r, "paymentId")
	callerID := r.Header.Get("X-User-Id")
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	p, err := fn(r.Context(), paymentID, callerID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	paymentID := chi.URLParam(r, "paymentId")
	callerID := r.Header.Get("X-User-Id")
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	p, err := h.Ledger.Dispute(r.Context(), paymentID, callerID, req.Reason)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	paymentID := chi.URLParam(r, "paymentId")
	callerID := r.Header.Get("X-User-Id")
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	p, err := h.Ledger.Cancel(r.Context(), paymentID, callerID, req.Reason)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	paymentID := chi.URLParam(r, "paymentId")
	p, err := h.Resolver.Resolve(r.Context(), paymentID, resolver.Decision(req.Decision), req.Justification)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "escrow payment not found")
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "not a party to this payment")
	case errors.Is(err, ledger.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "transition not allowed from current status")
	case errors.Is(err, ledger.ErrNotDisputed):
		writeError(w, http.StatusConflict, "payment is not disputed")
	case errors.Is(err, ledger.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "payment modified concurrently, retry")
	case errors.Is(err, ledger.ErrGatewayFailure):
		writeError(w, http.StatusBadGateway, "payment gateway failure, retry")
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidParties),
		errors.Is(err, ledger.ErrInvalidCurrency),
		errors.Is(err, ledger.ErrInvalidMethod),
		errors.Is(err, ledger.ErrEmptyReason),
		errors.Is(err, resolver.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
