package api

import (
	"clouddb/internal/core"
	"clouddb/internal/logger"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Warn("Failed to write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{"data": data})
}

// writeError maps err onto its status. Internal failures are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := core.StatusCode(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": core.PublicMessage(err)})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", core.ErrInvalidPayload)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
	}
	return nil
}
