package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"go.uber.org/zap"
)

type tokenRequest struct {
	Subject  string `json:"subject"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by TokenHandler.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// TokenHandler serves POST requests exchanging the shared password for a
// token.
func TokenHandler(issuer *Issuer, logger *zap.Logger) http.Handler {
	logger = logger.Named("token_handler")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req tokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		token, err := issuer.Issue(req.Subject, req.Password)
		switch {
		case errors.Is(err, e.ErrUnauthenticated):
			logger.Warn("Rejected token request", zap.String("subject", req.Subject))
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("Failed to issue token", zap.Error(err))
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TokenResponse{
			Token:     token,
			ExpiresIn: int64(issuer.ttl / time.Second),
		}); err != nil {
			logger.Warn("Failed to encode token", zap.Error(err))
		}
	})
}
