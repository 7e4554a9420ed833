package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/shopspring/decimal"
)

// LendingHandler serves loan offers and insights derived from a snapshot.
type LendingHandler struct {
	deps Dependencies
}

// NewLendingHandler creates a new lending handler.
func NewLendingHandler(deps Dependencies) *LendingHandler {
	return &LendingHandler{deps: deps}
}

type offersResponse struct {
	Subject string            `json:"subject"`
	Amount  string            `json:"amount"`
	Offers  []model.LoanOffer `json:"offers"`
}

// HandleOffers handles GET /scores/{subject}/offers?amount=.
func (h *LendingHandler) HandleOffers(w http.ResponseWriter, r *http.Request) {
	const op = "api.offers"
	subject := mux.Vars(r)["subject"]

	amount := decimal.Zero
	if raw := r.URL.Query().Get("amount"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		amount = v
	}

	offers, err := h.deps.Offers(r.Context(), subject, amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offersResponse{Subject: subject, Amount: amount.String(), Offers: offers})
}

// HandleInsights handles GET /scores/{subject}/insights.
func (h *LendingHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	ins, err := h.deps.Insights(r.Context(), mux.Vars(r)["subject"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ins)
}
