package api

import (
	"clouddb/internal/core"
	"clouddb/internal/service"
	"net/http"
	"strings"
	"time"
)

// Handler serves the API-key authenticated query endpoint.
type Handler struct {
	gateway *service.Gateway
}

func NewHandler(gateway *service.Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// ExecuteQuery runs one query envelope. The key may come in the body or in
// the X-API-Key header; the body wins.
func (h *Handler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req service.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		observeQuery("", core.StatusCode(err), time.Since(start))
		writeError(w, err)
		return
	}
	if req.ApiKey == "" {
		req.ApiKey = r.Header.Get("X-API-Key")
	}
	req.Endpoint = r.URL.Path

	result, err := h.gateway.Execute(r.Context(), req)
	observeQuery(metricAction(req.Action), core.StatusCode(err), time.Since(start))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func metricAction(action string) string {
	switch a := strings.ToLower(action); a {
	case service.ActionSelect, service.ActionInsert, service.ActionUpdate, service.ActionDelete:
		return a
	case "":
		return "none"
	}
	return "invalid"
}
