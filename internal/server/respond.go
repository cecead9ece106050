package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeBridgeError отдает типизированный отказ с корректным HTTP-статусом.
func writeBridgeError(w http.ResponseWriter, err error) {
	var bErr *domain.BridgeError
	if !errors.As(err, &bErr) {
		bErr = domain.NewBridgeError(domain.CodeInternalError, "internal error")
	}
	writeJSON(w, bErr.Code.HTTPStatus(), bErr)
}
