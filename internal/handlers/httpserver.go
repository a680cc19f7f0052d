package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/plaid"
)

type LinkService interface {
	CreateLinkToken(ctx context.Context, clientUserID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeTokenResponse, error)
}

type AccountLister interface {
	ListAccounts(ctx context.Context, bankToken string) ([]domain.BankAccount, error)
}

type Payer interface {
	Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
}

type HistoryLister interface {
	ListPayments(ctx context.Context) ([]domain.PaymentSummary, error)
}

type HttpServer struct {
	logger       *zap.Logger
	link         LinkService
	accounts     AccountLister
	payer        Payer
	history      HistoryLister
	clientUserID string
}

// NewHttpServer wires the handlers. clientUserID identifies the payer to the
// bank-linking provider.
func NewHttpServer(logger *zap.Logger, link LinkService, accounts AccountLister, payer Payer,
	history HistoryLister, clientUserID string) *HttpServer {
	return &HttpServer{
		logger:       logger,
		link:         link,
		accounts:     accounts,
		payer:        payer,
		history:      history,
		clientUserID: clientUserID,
	}
}

func (h *HttpServer) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *HttpServer) respondWithError(w http.ResponseWriter, status int, message string) {
	h.respondWithJSON(w, status, map[string]string{"error": message})
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondWithPaymentError maps the error kind to a status code and keeps the
// provider's own message in details.
func (h *HttpServer) respondWithPaymentError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "internal error"}

	var pe *domain.PaymentError
	if errors.As(err, &pe) {
		resp.Error = pe.Reason
		resp.Details = pe.ProviderDetail
	} else {
		h.logger.Error("unclassified error", zap.Error(err))
	}

	h.respondWithJSON(w, StatusFor(domain.KindOf(err)), resp)
}

func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindTransient:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindRejection:
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// decodeJSON decodes the request body into dst. An empty body leaves dst zero.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.NewValidationError("invalid JSON body")
}
