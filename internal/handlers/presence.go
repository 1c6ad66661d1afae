package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kestrelchat/kestrel/internal/presence"
)

// PresenceHandler serves the roster of who is currently connected.
type PresenceHandler struct {
	presence *presence.Service
}

func NewPresenceHandler(svc *presence.Service) *PresenceHandler {
	return &PresenceHandler{presence: svc}
}

type onlineResponse struct {
	Sessions int      `json:"sessions"`
	Online   []string `json:"online"`
}

// Online reports the number of open sessions and the usernames of the
// authenticated ones. Anonymous sessions count toward the total but are
// not listed.
func (h *PresenceHandler) Online(c echo.Context) error {
	return c.JSON(http.StatusOK, onlineResponse{
		Sessions: h.presence.Count(),
		Online:   h.presence.Online(),
	})
}
