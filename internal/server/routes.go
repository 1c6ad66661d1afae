package server

import (
	kestrelmw "github.com/kestrelchat/kestrel/internal/middleware"
)

// RegisterRoutes attaches every endpoint to the echo instance.
func (s *Server) RegisterRoutes() {
	api := s.E.Group("/api")

	limiter := kestrelmw.RateLimiter()
	api.POST("/create-account", s.authHandler.CreateAccount, limiter)
	api.POST("/login", s.authHandler.Login, limiter)

	api.GET("/online", s.presenceHandler.Online, kestrelmw.Auth(s.Tokens))
	api.GET("/ws", s.chatHandler.Serve)
}
