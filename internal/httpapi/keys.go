package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/relayd/internal/store"
)

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request, body json.RawMessage) {
	var req struct {
		Label        string `json:"label"`
		Owner        string `json:"owner"`
		DurationDays int    `json:"duration_days"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	rec, err := s.keys.Create(r.Context(), req.Label, req.Owner, req.DurationDays)
	if err != nil {
		slog.Error("create api key", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "key_store_unavailable"})
		return
	}

	slog.Info("api key created", "label", rec.Label, "expires_at", rec.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"api_key":       rec.Token,
		"label":         rec.Label,
		"owner":         rec.Owner,
		"created_at":    rec.CreatedAt,
		"expires_at":    rec.ExpiresAt,
		"duration_days": int(rec.ExpiresAt.Sub(rec.CreatedAt).Hours() / 24),
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request, _ json.RawMessage) {
	records, err := s.keys.List(r.Context())
	if err != nil {
		slog.Error("list api keys", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "key_store_unavailable"})
		return
	}
	if records == nil {
		records = []store.ApiKeyRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": records})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request, body json.RawMessage) {
	var req struct {
		Key string `json:"api_key"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "api_key is required"})
		return
	}

	revoked, err := s.keys.Revoke(r.Context(), req.Key)
	if err != nil {
		slog.Error("revoke api key", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "key_store_unavailable"})
		return
	}

	if revoked {
		slog.Info("api key revoked")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

// handleValidateKey lets integrators check a key without spending a command
// call. No master secret needed: the key itself is the credential.
func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	var req struct {
		Key string `json:"api_key"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "api_key is required"})
		return
	}

	rec, err := s.keys.Validate(r.Context(), req.Key)
	switch {
	case err == nil:
		daysLeft := int(time.Until(rec.ExpiresAt).Hours() / 24)
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":      true,
			"expires_at": rec.ExpiresAt,
			"days_left":  daysLeft,
			"revoked":    false,
		})
	case errors.Is(err, store.ErrKeyNotFound):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "not_found"})
	case errors.Is(err, store.ErrKeyRevoked):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "revoked"})
	case errors.Is(err, store.ErrKeyExpired):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "expired", "expires_at": rec.ExpiresAt})
	default:
		slog.Error("validate api key", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "key_store_unavailable"})
	}
}
