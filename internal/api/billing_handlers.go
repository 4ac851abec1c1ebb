package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/bookshelf/internal/domain/billing"
)

func (h *Handlers) CreateBilling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Items    []struct {
			ItemType    string  `json:"item_type"`
			ItemID      string  `json:"item_id"`
			Description string  `json:"description"`
			Quantity    int     `json:"quantity"`
			UnitPrice   float64 `json:"unit_price"`
		} `json:"items"`
		PaymentMethod  string           `json:"payment_method"`
		BillingAddress *billing.Address `json:"billing_address"`
		Notes          string           `json:"notes"`
		DueDate        *time.Time       `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	items := make([]billing.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, billing.ItemInput{
			ItemType:    it.ItemType,
			ItemID:      it.ItemID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	record, err := h.billing.Create(r.Context(), billing.CreateInput{
		Username:       req.Username,
		Items:          items,
		PaymentMethod:  req.PaymentMethod,
		BillingAddress: req.BillingAddress,
		Notes:          req.Notes,
		DueDate:        req.DueDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"billing": record})
}

func (h *Handlers) GetBilling(w http.ResponseWriter, r *http.Request) {
	billingID := extractPathParam(r.URL.Path, "/billings/")
	record, err := h.billing.Get(r.Context(), billingID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"billing": record})
}

func (h *Handlers) GetUserBillings(w http.ResponseWriter, r *http.Request) {
	username := extractPathParam(r.URL.Path, "/billings/user/")
	records, err := h.billing.ListByUser(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"billings": records})
}

func (h *Handlers) UpdateBillingStatus(w http.ResponseWriter, r *http.Request) {
	billingID := extractPathParam(r.URL.Path, "/billings/status/")

	var req struct {
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	record, err := h.billing.UpdateStatus(r.Context(), billingID, req.Status, req.PaymentStatus)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"billing": record})
}

func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BillingID     string  `json:"billing_id"`
		Amount        float64 `json:"amount"`
		PaymentMethod string  `json:"payment_method"`
		TransactionID string  `json:"transaction_id"`
		CardLast4     string  `json:"card_last4"`
		CardBrand     string  `json:"card_brand"`
		Notes         string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	payment, record, err := h.billing.ProcessPayment(r.Context(), billing.PaymentInput{
		BillingID:     req.BillingID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		CardLast4:     req.CardLast4,
		CardBrand:     req.CardBrand,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"payment": payment, "billing": record})
}

func (h *Handlers) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	username := extractPathParam(r.URL.Path, "/payments/user/")
	payments, err := h.billing.PaymentHistory(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	billingID := extractPathParam(r.URL.Path, "/billings/invoice/")
	invoice, err := h.billing.GenerateInvoice(r.Context(), billingID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (h *Handlers) GetLateFee(w http.ResponseWriter, r *http.Request) {
	billingID := extractPathParam(r.URL.Path, "/billings/latefee/")
	daysLate, fee, err := h.billing.CalculateLateFee(r.Context(), billingID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"days_late": daysLate, "late_fee": fee})
}

func (h *Handlers) GetOverdueBillings(w http.ResponseWriter, r *http.Request) {
	records, err := h.billing.Overdue(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"billings": records})
}

func (h *Handlers) GetBillingStats(w http.ResponseWriter, r *http.Request) {
	username := extractPathParam(r.URL.Path, "/billings/stats/")
	stats, err := h.billing.UserStats(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
