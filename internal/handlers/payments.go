package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/GalaDe/payment-portal/internal/domain"
)

/*

| Endpoint                     | Description                          |
| ---------------------------- | ------------------------------------ |
| `POST /api/payments`         | Pay by card or bank                  |
| `GET  /api/payments/history` | Recent payments for display          |

*/

type CreatePaymentRequest struct {
	Amount          json.RawMessage `json:"amount"`
	Method          string          `json:"method"`
	BankToken       string          `json:"bankToken"`
	AccountID       string          `json:"accountId"`
	PaymentMethodID string          `json:"paymentMethodId"`
}

type CreatePaymentResponse struct {
	Success       bool                 `json:"success"`
	TransactionID string               `json:"transactionId"`
	Amount        json.Number          `json:"amount"`
	Status        domain.PaymentStatus `json:"status"`
	Strategy      domain.StrategyName  `json:"strategy"`
	ClientSecret  string               `json:"clientSecret,omitempty"`
}

type PaymentHistoryEntry struct {
	ID      string               `json:"id"`
	Amount  json.Number          `json:"amount"`
	Display string               `json:"display"`
	Date    string               `json:"date"`
	Status  domain.PaymentStatus `json:"status"`
}

type PaymentHistoryResponse struct {
	Payments []PaymentHistoryEntry `json:"payments"`
	Error    string                `json:"error,omitempty"`
}

/*
	POST /api/payments

	The amount is validated before any provider is contacted.
*/
func (h *HttpServer) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithPaymentError(w, err)
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respondWithPaymentError(w, err)
		return
	}

	result, err := h.payer.Pay(r.Context(), &domain.PaymentRequest{
		Amount:          amount,
		Method:          domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method))),
		BankToken:       req.BankToken,
		AccountID:       req.AccountID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		h.respondWithPaymentError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, CreatePaymentResponse{
		Success:       true,
		TransactionID: result.TransactionID,
		Amount:        json.Number(result.Amount.String()),
		Status:        result.Status,
		Strategy:      result.Strategy,
		ClientSecret:  result.ClientSecret,
	})
}

/*
	GET /api/payments/history

	A failed fetch still renders: an empty list with the error, status 502.
*/
func (h *HttpServer) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.history.ListPayments(r.Context())

	resp := PaymentHistoryResponse{Payments: make([]PaymentHistoryEntry, 0, len(summaries))}
	if err != nil {
		resp.Error = "failed to load payment history"
		h.respondWithJSON(w, http.StatusBadGateway, resp)
		return
	}

	for _, s := range summaries {
		resp.Payments = append(resp.Payments, PaymentHistoryEntry{
			ID:      s.ID,
			Amount:  json.Number(s.Amount.StringFixed(2)),
			Display: s.Display,
			Date:    s.Date,
			Status:  s.Status,
		})
	}
	h.respondWithJSON(w, http.StatusOK, resp)
}
