package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/beanjar/internal/ledger"
	"github.com/dukerupert/beanjar/internal/middleware"
	"github.com/dukerupert/beanjar/internal/oracle"
)

// oracleCooldown is the Retry-After sent when the model endpoint throttles us.
const oracleCooldown = "30"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses. Client errors carry
// their message; anything else is logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidState):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, oracle.ErrInvalidType):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, oracle.ErrRateLimited):
		w.Header().Set("Retry-After", oracleCooldown)
		writeMessage(w, http.StatusTooManyRequests, "Jerry needs a break, try again shortly")
	case errors.Is(err, ledger.ErrTransient):
		logger.Error("transient failure", "error", err, "request_id", middleware.RequestID(r.Context()))
		writeMessage(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	default:
		logger.Error("request failed", "error", err, "request_id", middleware.RequestID(r.Context()))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseQueryID reads an optional numeric query parameter. It returns nil
// when the parameter is absent.
func parseQueryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
