package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/talos/internal/payments"
	"github.com/example/talos/internal/types"
	"github.com/example/talos/pkg/jsonutil"
)

// Payer is satisfied by *payments.Engine.
type Payer interface {
	Send(ctx context.Context, req payments.Request) (payments.Receipt, error)
	Stats() payments.Stats
}

type PaymentHandler struct {
	Engine Payer
	Logger *slog.Logger
}

func NewPaymentHandler(engine Payer, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{Engine: engine, Logger: logger}
}

func paymentStatus(err error) int {
	switch {
	case errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrInvalidRecipient),
		errors.Is(err, payments.ErrUnsupportedChain):
		return http.StatusBadRequest
	case errors.Is(err, payments.ErrSessionLimit), errors.Is(err, payments.ErrDailyLoss):
		return http.StatusTooManyRequests
	case errors.Is(err, payments.ErrRejected):
		return http.StatusForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// Send handles POST /api/payments.
func (h *PaymentHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req types.PaymentRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	lamports, err := types.SolToLamports(req.Amount)
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rcpt, err := h.Engine.Send(r.Context(), payments.Request{To: req.To, Lamports: lamports, Chain: req.Chain})
	if err != nil {
		jsonutil.Error(w, paymentStatus(err), err.Error())
		return
	}
	jsonutil.JSON(w, http.StatusOK, types.PaymentResponse{
		Signature: rcpt.Signature,
		Chain:     rcpt.Chain,
		Mode:      string(rcpt.Mode),
		Lamports:  rcpt.Lamports,
	})
}

// Stats handles GET /api/payments/stats.
func (h *PaymentHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	jsonutil.JSON(w, http.StatusOK, h.Engine.Stats())
}
