package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/surrealdb/surrealdb.go"

	"github.com/kestrelchat/kestrel/internal/chat"
	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/database"
	"github.com/kestrelchat/kestrel/internal/domain"
	"github.com/kestrelchat/kestrel/internal/handlers"
	"github.com/kestrelchat/kestrel/internal/hub"
	"github.com/kestrelchat/kestrel/internal/logging"
	kestrelmw "github.com/kestrelchat/kestrel/internal/middleware"
	"github.com/kestrelchat/kestrel/internal/presence"
	"github.com/kestrelchat/kestrel/internal/pubsub"
	"github.com/kestrelchat/kestrel/internal/token"
)

// Server holds the dependencies for the relay process.
type Server struct {
	E        *echo.Echo
	Cfg      *config.Config
	Hub      *hub.Hub[chat.Message]
	Tokens   *token.Authority
	PubSub   *pubsub.WatermillBridge
	Presence *presence.Service

	db              *surrealdb.DB // nil when running on the memory store
	users           domain.UserRepository
	authHandler     *handlers.AuthHandler
	presenceHandler *handlers.PresenceHandler
	chatHandler     *chat.Handler
}

// New wires up a Server from the environment. Initialization failures here
// (no randomness, unreachable database) abort startup; nothing is
// recoverable once the process is this early in its life.
func New() (*Server, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	logging.New(cfg.LogFormat)

	tokens, err := token.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token authority: %w", err)
	}

	var db *surrealdb.DB
	var users domain.UserRepository
	switch cfg.DBDriver {
	case "surreal":
		db, err = database.NewDB(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		users = database.NewSurrealUserStore(db)
	default:
		slog.Info("Using in-memory user store; accounts will not survive a restart")
		users = database.NewMemoryUserStore()
	}

	bus := pubsub.NewWatermillBridge()
	presenceSvc := presence.NewService()
	if err := presenceSvc.Start(context.Background(), bus); err != nil {
		return nil, fmt.Errorf("failed to start presence service: %w", err)
	}

	messageHub := hub.New[chat.Message]()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(kestrelmw.Logger)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		E:               e,
		Cfg:             cfg,
		Hub:             messageHub,
		Tokens:          tokens,
		PubSub:          bus,
		Presence:        presenceSvc,
		db:              db,
		users:           users,
		authHandler:     handlers.NewAuthHandler(users, tokens),
		presenceHandler: handlers.NewPresenceHandler(presenceSvc),
		chatHandler:     chat.NewHandler(tokens, messageHub, bus),
	}, nil
}

// UserStore is a getter for the server's user store, useful for testing.
func (s *Server) UserStore() domain.UserRepository {
	return s.users
}
