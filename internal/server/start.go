package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server until an interrupt or terminate signal, then
// shuts down gracefully.
func (s *Server) Start() {
	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && err != http.ErrServerClosed {
			slog.Error("Server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.PubSub.Close(); err != nil {
		slog.Error("Failed to close message bus", "error", err)
	}
	if s.db != nil {
		s.db.Close(ctx)
	}
	if err := s.E.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down cleanly", "error", err)
	}
}
