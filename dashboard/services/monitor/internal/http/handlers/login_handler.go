package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"socdash/dashboard/services/monitor/internal/auth"
)

// NewLoginHandler handles POST /api/login.
func NewLoginHandler(operator *auth.Operator) http.HandlerFunc {
	type request struct {
		Password string `json:"password"`
	}
	type response struct {
		Token     string    `json:"token"`
		TokenType string    `json:"token_type"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !operator.Enabled() {
			writeError(w, http.StatusNotFound, "operator login is disabled")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Password = strings.TrimSpace(req.Password)
		if req.Password == "" {
			writeError(w, http.StatusBadRequest, "password is required")
			return
		}

		token, expires, err := operator.Login(req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}

		writeJSON(w, http.StatusOK, response{
			Token:     token,
			TokenType: "Bearer",
			ExpiresAt: expires,
		})
	}
}
