package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/bookshelf/internal/activity"
	"github.com/example/bookshelf/internal/auth"
	"github.com/example/bookshelf/internal/domain/billing"
	"github.com/example/bookshelf/internal/domain/cart"
	"github.com/example/bookshelf/internal/domain/catalog"
	"github.com/example/bookshelf/internal/domain/order"
	"github.com/example/bookshelf/internal/domain/publiclist"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

type Handlers struct {
	catalog *catalog.Service
	cart    *cart.Service
	orders  *order.Service
	billing *billing.Service
	lists   *publiclist.Service
	admin   *auth.AdminService
	store   store.DocumentStore
}

func NewHandlers(
	catalogSvc *catalog.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	billingSvc *billing.Service,
	listSvc *publiclist.Service,
	adminSvc *auth.AdminService,
	st store.DocumentStore,
) *Handlers {
	return &Handlers{
		catalog: catalogSvc,
		cart:    cartSvc,
		orders:  orderSvc,
		billing: billingSvc,
		lists:   listSvc,
		admin:   adminSvc,
		store:   st,
	}
}

// Book Handlers

func (h *Handlers) GetBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *Handlers) SearchBooks(w http.ResponseWriter, r *http.Request) {
	text := extractPathParam(r.URL.Path, "/books/search/")
	books, err := h.catalog.Search(r.Context(), text)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *Handlers) FilterBooks(w http.ResponseWriter, r *http.Request) {
	genre := r.URL.Query().Get("genre")
	title := r.URL.Query().Get("title")
	books, err := h.catalog.Filter(r.Context(), genre, title)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	username := extractPathParam(r.URL.Path, "/books/recommendations/")

	var borrowedIDs []string
	if username != "" {
		history, err := h.cart.BorrowHistory(r.Context(), username)
		if err == nil {
			for _, b := range history {
				borrowedIDs = append(borrowedIDs, b.BookID)
			}
		}
	}

	books, err := h.catalog.Recommendations(r.Context(), borrowedIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *Handlers) GetPrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookIDs []string `json:"book_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	quotes, err := h.catalog.Prices(r.Context(), req.BookIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prices": quotes})
}

func (h *Handlers) SeedBooks(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.Seed(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if count == 0 {
		respondJSON(w, http.StatusOK, map[string]string{"message": "books already exist"})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"message": "demo books seeded", "count": count})
}

// Cart Handlers

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string  `json:"username"`
		BookID   string  `json:"book_id"`
		Title    string  `json:"title"`
		Price    float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if err := h.cart.Add(r.Context(), req.Username, req.BookID, req.Title, req.Price); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "book added to cart"})
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	username := extractPathParam(r.URL.Path, "/cart/")
	entries, err := h.cart.List(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"books": entries})
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		BookID   string `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if err := h.cart.Remove(r.Context(), req.Username, req.BookID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "book removed from cart"})
}

// Checkout clears the cart. Mode "borrow" records the cart into the
// borrow history; anything else is a plain purchase checkout.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Mode     string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	var err error
	if req.Mode == "borrow" {
		err = h.cart.RecordBorrow(r.Context(), req.Username)
	} else {
		err = h.cart.RecordPurchase(r.Context(), req.Username)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "checkout successful"})
}

func (h *Handlers) ReturnBooks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string   `json:"username"`
		BookIDs  []string `json:"book_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	if err := h.cart.Return(r.Context(), req.Username, req.BookIDs); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "books returned"})
}

func (h *Handlers) BorrowedBooks(w http.ResponseWriter, r *http.Request) {
	reports, err := h.cart.BorrowedAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username        string   `json:"username"`
		BookIDs         []string `json:"book_ids"`
		PaymentMethod   string   `json:"payment_method"`
		PaymentStatus   string   `json:"payment_status"`
		CopyType        string   `json:"copy_type"`
		TotalAmount     float64  `json:"total_amount"`
		CustomerName    string   `json:"customer_name"`
		CustomerPhone   string   `json:"customer_phone"`
		DeliveryAddress string   `json:"delivery_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	ord, err := h.orders.Place(r.Context(), order.PlaceInput{
		Username:        req.Username,
		BookIDs:         req.BookIDs,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   req.PaymentStatus,
		CopyType:        req.CopyType,
		TotalAmount:     req.TotalAmount,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"order_id":       ord.OrderID,
		"total_amount":   ord.TotalAmount,
		"status":         ord.Status,
		"copy_type":      ord.CopyType,
		"payment_status": ord.PaymentStatus,
		"items":          ord.Items,
	})
}

func (h *Handlers) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	username := extractPathParam(r.URL.Path, "/orders/")
	orders, err := h.orders.ListByUser(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// DownloadAsset authorizes a softcopy download and returns the asset
// reference. File storage itself is an external collaborator.
func (h *Handlers) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	bookID := extractPathParam(r.URL.Path, "/downloads/")
	username := r.URL.Query().Get("username")

	book, err := h.orders.AuthorizeDownload(r.Context(), username, bookID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"title":   book.Title,
		"pdf_url": book.PDFURL,
	})
}

// Public List Handlers

func (h *Handlers) PublishList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string   `json:"title"`
		BookIDs  []string `json:"book_ids"`
		Username string   `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	list, err := h.lists.Publish(r.Context(), req.Title, req.BookIDs, req.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "list published", "slug": list.Slug})
}

func (h *Handlers) GetPublicList(w http.ResponseWriter, r *http.Request) {
	slug := extractPathParam(r.URL.Path, "/lists/")
	list, books, err := h.lists.Resolve(r.Context(), slug)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"list": list, "books": books})
}

// Activity Handler

func (h *Handlers) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := activity.Recent(r.Context(), h.store, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"activity": records})
}

// extractPathParam returns the path segment after the given prefix.
func extractPathParam(path, prefix string) string {
	param := strings.TrimPrefix(path, prefix)
	return strings.TrimSuffix(param, "/")
}
