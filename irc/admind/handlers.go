package admind

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/presbrey/relay/irc"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns server statistics in JSON format
func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.irc.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// handleChannels lists live channels
func (s *Server) handleChannels(c echo.Context) error {
	channels, err := s.irc.Channels(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if channels == nil {
		channels = []irc.ChannelInfo{}
	}
	return c.JSON(http.StatusOK, channels)
}

// SendRequest is the body of POST /api/send.
type SendRequest struct {
	Type    string `json:"type" validate:"omitempty,oneof=privmsg notice"`
	Target  string `json:"target" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// handleSend relays a message from the server to a channel or nickname
func (s *Server) handleSend(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	notice := req.Type == "notice"
	err := s.irc.Announce(c.Request().Context(), req.Target, req.Message, notice)
	switch {
	case errors.Is(err, irc.ErrNoSuchChannel), errors.Is(err, irc.ErrNoSuchNick):
		return echo.NewHTTPError(http.StatusNotFound, "Target not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	s.log.WithField("target", req.Target).Info("Relayed admin message")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Message sent",
	})
}
