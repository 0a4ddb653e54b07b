package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront/internal/admin"
	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/order"
	"storefront/internal/session"
	"storefront/internal/shipping"
)

func main() {
	// .env is optional; values already in the environment win
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.Client.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	client := api.New(cfg.Backend.URL, cfg.Backend.Timeout, log)
	sessions := session.NewStore(cfg.Session.File, client, log)
	client.AttachSession(sessions)

	// Optimistic restore: a persisted session is trusted until the
	// first authenticated call rejects it.
	if _, err := sessions.Restore(); err != nil {
		log.Warn("Failed to restore session", zap.Error(err))
	}

	app := &app{
		cfg:      cfg,
		logger:   log,
		sessions: sessions,
		catalog:  catalog.NewService(client, log),
		cart:     cart.NewSynchronizer(client, sessions, log),
		orders:   order.NewService(client, sessions, log),
		shipping: shipping.NewService(client, sessions, log),
		admin:    admin.NewManager(client, sessions, log),
	}

	os.Exit(app.run(os.Args[1:]))
}
