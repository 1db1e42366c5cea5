// Package query exposes the analytics read API. All product routes are
// seller scoped through the request context; the event-type route is an
// operator surface and additionally filters by seller when one is present.
package query

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/httpx"
	"product-catalog-platform/shared/sellerx"
)

type Handler struct {
	Store *store.Store
}

func (h Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics/products/{id}/history", h.productHistory)
	mux.HandleFunc("GET /api/v1/analytics/events/{type}", h.eventsByType)
	mux.HandleFunc("GET /api/v1/analytics/daily", h.sellerDaily)
}

func (h Handler) productHistory(w http.ResponseWriter, r *http.Request) {
	sellerID := sellerx.SellerIDFromContext(r.Context())
	if sellerID == "" {
		httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing seller context", nil)
		return
	}

	since, until, ok := timeWindow(w, r)
	if !ok {
		return
	}
	records, err := h.Store.ProductHistory(r.Context(), sellerID, r.PathValue("id"), since, until, queryInt(r, "limit", 100))
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to query product history", nil)
		return
	}
	writeRecords(w, records)
}

func (h Handler) eventsByType(w http.ResponseWriter, r *http.Request) {
	eventType := events.EventType(r.PathValue("type"))
	if !eventType.Valid() {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown event type", nil)
		return
	}

	since, until, ok := timeWindow(w, r)
	if !ok {
		return
	}
	records, err := h.Store.EventsByType(r.Context(), eventType, since, until, queryInt(r, "limit", 100))
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to query events", nil)
		return
	}

	if sellerID := sellerx.SellerIDFromContext(r.Context()); sellerID != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.SellerID == sellerID {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	writeRecords(w, records)
}

func (h Handler) sellerDaily(w http.ResponseWriter, r *http.Request) {
	sellerID := sellerx.SellerIDFromContext(r.Context())
	if sellerID == "" {
		httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing seller context", nil)
		return
	}

	now := time.Now().UTC()
	sinceDay := strings.TrimSpace(r.URL.Query().Get("since"))
	if sinceDay == "" {
		sinceDay = now.AddDate(0, 0, -30).Format("2006-01-02")
	}
	untilDay := strings.TrimSpace(r.URL.Query().Get("until"))
	if untilDay == "" {
		untilDay = now.Format("2006-01-02")
	}

	records, err := h.Store.SellerDaily(r.Context(), sellerID, sinceDay, untilDay, queryInt(r, "limit", 90))
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to query daily analytics", nil)
		return
	}
	if records == nil {
		records = []store.SellerDailyRecord{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": records})
}

func writeRecords(w http.ResponseWriter, records []store.AnalyticsRecord) {
	if records == nil {
		records = []store.AnalyticsRecord{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": records})
}

func timeWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -7)
	until := now

	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "since must be RFC3339", nil)
			return time.Time{}, time.Time{}, false
		}
		since = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("until")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "until must be RFC3339", nil)
			return time.Time{}, time.Time{}, false
		}
		until = t
	}
	if until.Before(since) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "until must be after since", nil)
		return time.Time{}, time.Time{}, false
	}
	return since, until, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
