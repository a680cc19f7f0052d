package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

/*

			Endpoint                           | 				Description
| ----------------------------------------- | ------------------------------------------- |
| `POST /api/plaid/create-link-session`     | Create a link token for the frontend        |
| `POST /api/plaid/exchange-link-token`     | Exchange a public token for a bank token    |
| `POST /api/plaid/accounts`                | List payable accounts behind a bank token   |

*/

type ExchangeLinkTokenRequest struct {
	PublicToken string `json:"publicToken"`
}

type ListAccountsRequest struct {
	BankToken string `json:"bankToken"`
}

/*
	POST /api/plaid/create-link-session

	Link token is a short live(30 min), single use per session. The frontend
	keeps Plaid Link disabled when this call fails.
*/
func (h *HttpServer) CreateLinkSession(w http.ResponseWriter, r *http.Request) {
	token, err := h.link.CreateLinkToken(r.Context(), h.clientUserID)
	if err != nil {
		h.logger.Error("failed to create link token", zap.Error(err))
		h.respondWithPaymentError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"sessionToken": token})
}

/*
	POST /api/plaid/exchange-link-token

	1. User opens Plaid Link using the session token
	2. Plaid Link returns a public_token to the frontend
	3. Frontend sends that public_token here and keeps the returned bank token

	The exchange is never retried; a failed exchange ends that linking attempt.
*/
func (h *HttpServer) ExchangeLinkToken(w http.ResponseWriter, r *http.Request) {
	var req ExchangeLinkTokenRequest
	if err := decodeJSON(r, &req); err != nil || req.PublicToken == "" {
		h.respondWithError(w, http.StatusBadRequest, "publicToken is required")
		return
	}

	resp, err := h.link.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		h.logger.Error("failed to exchange public token", zap.Error(err))
		h.respondWithPaymentError(w, err)
		return
	}

	h.logger.Info("bank linked", zap.String("item_id", resp.ItemID))
	h.respondWithJSON(w, http.StatusOK, map[string]string{"bankToken": resp.AccessToken})
}

/*
	POST /api/plaid/accounts
*/
func (h *HttpServer) ListAccounts(w http.ResponseWriter, r *http.Request) {
	var req ListAccountsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithPaymentError(w, err)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), req.BankToken)
	if err != nil {
		h.respondWithPaymentError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}
