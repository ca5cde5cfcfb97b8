// Authentication service exchanging the shared hiring-team password for JWTs
// accepted by the hiring service.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gartstein/hiring/internal/hiring/auth"
	"github.com/gartstein/hiring/internal/hiring/config"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join("internal", "hiring", "config", "config.yaml")
	}
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to load config", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to build logger", zap.Error(err))
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if cfg.Auth.Password == "" {
		logger.Warn("AUTH_PASSWORD is not set, every token request will fail")
	}

	mux := http.NewServeMux()
	mux.Handle("/token", auth.TokenHandler(auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Password, cfg.Auth.TokenTTL), logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Auth.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("Authentication service running", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("authentication service failed", zap.Error(err))
	}
}
