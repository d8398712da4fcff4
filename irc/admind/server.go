// Package admind serves the relay's HTTP admin surface: health, statistics,
// channel listings, Prometheus metrics and a bearer-token protected endpoint
// for relaying server messages.
package admind

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/presbrey/relay/irc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	irc    *irc.Server
	echo   *echo.Echo
	tokens []string
	log    logrus.FieldLogger
}

// New builds the admin HTTP server for srv. Metrics are served from reg.
func New(srv *irc.Server, reg *prometheus.Registry, tokens []string, logger logrus.FieldLogger) *Server {
	s := &Server{
		irc:    srv,
		echo:   echo.New(),
		tokens: tokens,
		log:    logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = newRequestValidator()
	s.echo.Use(newHTTPMetrics(reg).middleware)

	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/channels", s.handleChannels)
	api.POST("/send", s.handleSend, s.authenticate)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Infof("Admin server started on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "admin server failed")
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// authenticate requires one of the configured bearer tokens.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		for _, valid := range s.tokens {
			if subtle.ConstantTimeCompare([]byte(token), []byte(valid)) == 1 {
				return next(c)
			}
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
}
