package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/query"
)

// Prefix is the path prefix of every read route.
const Prefix = "/smart_pricing_api/v2"

// DataHandler serves the pipeline outputs.
type DataHandler struct {
	svc    query.Service
	logger logrus.FieldLogger
}

// NewDataHandler creates a new data handler.
func NewDataHandler(svc query.Service, logger logrus.FieldLogger) *DataHandler {
	return &DataHandler{
		svc:    svc,
		logger: logger.WithField("handler", "data"),
	}
}

// Register mounts the data and update routes on mux.
func (h *DataHandler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET " + Prefix + "/data/comp-prices/{property_id}", h.CompPrices},
		{"GET " + Prefix + "/data/ai-prices/{property_id}", h.AIPrices},
		{"GET " + Prefix + "/data/market-stats/{property_id}", h.MarketStats},
		{"GET " + Prefix + "/data/events/{property_id}", h.Events},
		{"GET " + Prefix + "/data/properties", h.Properties},
		{"GET " + Prefix + "/updates/latest/{scrap_type}", h.LatestUpdates},
		{"GET " + Prefix + "/updates/status", h.UpdateStatus},
	}

	for _, route := range routes {
		mux.HandleFunc(route.pattern, route.handler)
		h.logger.WithField("route", route.pattern).Info("Registered route")
	}
}

// CompPrices handles GET /data/comp-prices/{property_id}?date=&scrap_type=.
func (h *DataHandler) CompPrices(w http.ResponseWriter, r *http.Request) {
	id, date, err := h.propertyAndDate(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	mode, err := parseMode(r.URL.Query().Get("scrap_type"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	resp, err := h.svc.CompPrices(r.Context(), id, date, mode)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	h.writeJSON(w, resp)
}

// AIPrices handles GET /data/ai-prices/{property_id}?date=&model=&scrap_type=.
func (h *DataHandler) AIPrices(w http.ResponseWriter, r *http.Request) {
	id, date, err := h.propertyAndDate(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	mode, err := parseMode(r.URL.Query().Get("scrap_type"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	model := r.URL.Query().Get("model")
	if model == "" {
		h.writeError(w, r, fmt.Errorf("%w: model is required", query.ErrInvalidRequest))

		return
	}

	resp, err := h.svc.AIPrices(r.Context(), id, date, model, mode)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	h.writeJSON(w, resp)
}

// MarketStats handles GET /data/market-stats/{property_id}?date=.
func (h *DataHandler) MarketStats(w http.ResponseWriter, r *http.Request) {
	id, date, err := h.propertyAndDate(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	resp, err := h.svc.MarketStats(r.Context(), id, date)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	h.writeJSON(w, resp)
}

// Events handles GET /data/events/{property_id}?date=.
func (h *DataHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, date, err := h.propertyAndDate(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	resp, err := h.svc.Events(r.Context(), id, date)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	h.writeJSON(w, resp)
}

// Properties handles GET /data/properties.
func (h *DataHandler) Properties(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Properties(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	h.writeJSON(w, resp)
}

// LatestUpdates handles GET /updates/latest/{scrap_type}.
func (h *DataHandler) LatestUpdates(w http.ResponseWriter, r *http.Request) {
	mode, err := parseMode(r.PathValue("scrap_type"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	resp, err := h.svc.LatestUpdates(r.Context(), mode)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	h.writeJSON(w, resp)
}

// UpdateStatus handles GET /updates/status.
func (h *DataHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	resp := query.StatusResponse{
		OverallStatus: "ok",
		ScrapTypes:    make(map[string]*query.UpdatesResponse, len(granularity.All)),
	}

	for _, mode := range granularity.All {
		updates, err := h.svc.LatestUpdates(r.Context(), mode)
		if err != nil {
			h.writeError(w, r, err)

			return
		}

		resp.ScrapTypes[mode.String()] = updates
	}

	h.writeJSON(w, resp)
}

func (h *DataHandler) propertyAndDate(r *http.Request) (int64, time.Time, error) {
	id, err := query.ParsePropertyID(r.PathValue("property_id"))
	if err != nil {
		return 0, time.Time{}, err
	}

	date, err := query.ParseDate(r.URL.Query().Get("date"), h.svc.Location())
	if err != nil {
		return 0, time.Time{}, err
	}

	return id, date, nil
}

func parseMode(code string) (granularity.Mode, error) {
	mode, err := granularity.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", query.ErrInvalidRequest, err)
	}

	return mode, nil
}

func (h *DataHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeError maps query errors to status codes. Unexpected errors are logged
// and hidden from the client.
func (h *DataHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, query.ErrNotFound):
		h.logger.WithField("path", r.URL.Path).WithError(err).Debug("Resource not found")
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to serve request")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
