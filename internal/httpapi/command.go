package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/relayd/internal/relay"
	"github.com/nextlevelbuilder/relayd/internal/store"
)

// handleCommand runs a lookup command through the relay on behalf of an
// API-key holder and returns the correlated worker responses.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	var req struct {
		Key     string `json:"api_key"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if !s.limiter.Allow(req.Key) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
		return
	}

	if _, err := s.keys.Validate(r.Context(), req.Key); err != nil {
		reason := "not_found"
		switch {
		case errors.Is(err, store.ErrKeyRevoked):
			reason = "revoked"
		case errors.Is(err, store.ErrKeyExpired):
			reason = "expired"
		case !errors.Is(err, store.ErrKeyNotFound):
			slog.Error("validate api key", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "key_store_unavailable"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":  "invalid_api_key",
			"reason": reason,
		})
		return
	}

	command := strings.TrimSpace(req.Command)
	responses, err := s.relay.Submit(r.Context(), command)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"responses": responses,
		})
	case errors.Is(err, relay.ErrBadCommand):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_command"})
	case errors.Is(err, relay.ErrCannotWrite):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "worker_group_unreachable"})
	case errors.Is(err, relay.ErrTimeout):
		if len(responses) > 0 {
			// A partial answer beats none; flag it so callers can tell.
			writeJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"partial":   true,
				"responses": responses,
			})
			return
		}
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{
			"success": false,
			"error":   "timeout_no_response",
		})
	default:
		slog.Error("relay submit", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "relay_error"})
	}
}
