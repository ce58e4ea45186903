package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/udegarami/llmapi/internal/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDetail writes the error shape shared by every endpoint.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// pipelineError maps a pipeline failure onto the wire.
func pipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		writeDetail(w, perr.HTTPStatus(), perr.Message)
		return
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}
