package products

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"product-catalog-platform/shared/httpx"
	"product-catalog-platform/shared/sellerx"
)

// Handler exposes the product CRUD surface. Every route is seller scoped:
// the seller comes from the authenticated context, never from the body.
type Handler struct {
	Service *Service
}

func (h Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/products", h.create)
	mux.HandleFunc("GET /api/v1/products", h.list)
	mux.HandleFunc("GET /api/v1/products/{id}", h.get)
	mux.HandleFunc("PUT /api/v1/products/{id}", h.update)
	mux.HandleFunc("DELETE /api/v1/products/{id}", h.delete)
}

func (h Handler) create(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireSeller(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	p, err := h.Service.Create(r.Context(), sellerID, in)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create product", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h Handler) list(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireSeller(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, err := h.Service.List(r.Context(), sellerID, limit, offset)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list products", nil)
		return
	}
	if items == nil {
		items = []Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
}

func (h Handler) get(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireSeller(w, r)
	if !ok {
		return
	}
	p, err := h.Service.Get(r.Context(), sellerID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load product", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h Handler) update(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireSeller(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	p, err := h.Service.Update(r.Context(), sellerID, r.PathValue("id"), in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update product", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h Handler) delete(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireSeller(w, r)
	if !ok {
		return
	}
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))

	if err := h.Service.Delete(r.Context(), sellerID, r.PathValue("id"), reason); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete product", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireSeller(w http.ResponseWriter, r *http.Request) (string, bool) {
	sellerID := sellerx.SellerIDFromContext(r.Context())
	if sellerID == "" {
		httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing seller context", nil)
		return "", false
	}
	return sellerID, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var in ProductInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return ProductInput{}, false
	}
	if errs := in.Validate(); len(errs) > 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid product", map[string]any{"problems": errs})
		return ProductInput{}, false
	}
	return in, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
