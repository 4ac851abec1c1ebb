package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/bookshelf/internal/api/middleware"
	"github.com/example/bookshelf/internal/domain/catalog"
)

func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	token, admin, err := h.admin.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// Credential failures always read the same to the caller.
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "admin_token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.admin.TokenExpiry()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "login successful",
		"token":    token,
		"username": admin.Username,
		"role":     admin.Role,
	})
}

func (h *Handlers) AdminLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "admin_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handlers) AdminMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetAdminFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "authentication required"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"role":     claims.Role,
	})
}

// Admin-gated book management.

func (h *Handlers) AddBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string  `json:"title"`
		Author      string  `json:"author"`
		Price       float64 `json:"price"`
		Genre       string  `json:"genre"`
		Image       string  `json:"image"`
		Description string  `json:"description"`
		PDFURL      string  `json:"pdf_url"`
		CopyType    string  `json:"copy_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	book, err := h.catalog.Add(r.Context(), catalog.AddInput{
		Title:       req.Title,
		Author:      req.Author,
		Price:       req.Price,
		Genre:       req.Genre,
		Image:       req.Image,
		Description: req.Description,
		PDFURL:      req.PDFURL,
		CopyType:    catalog.CopyType(req.CopyType),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"book": book})
}

func (h *Handlers) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/books/")

	var req struct {
		Title       *string  `json:"title"`
		Author      *string  `json:"author"`
		Price       *float64 `json:"price"`
		Genre       *string  `json:"genre"`
		Image       *string  `json:"image"`
		Description *string  `json:"description"`
		PDFURL      *string  `json:"pdf_url"`
		CopyType    *string  `json:"copy_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	in := catalog.UpdateInput{
		Title:       req.Title,
		Author:      req.Author,
		Price:       req.Price,
		Genre:       req.Genre,
		Image:       req.Image,
		Description: req.Description,
		PDFURL:      req.PDFURL,
	}
	if req.CopyType != nil {
		ct := catalog.CopyType(*req.CopyType)
		in.CopyType = &ct
	}

	book, err := h.catalog.Update(r.Context(), id, in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"book": book})
}

func (h *Handlers) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/books/")
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
}
