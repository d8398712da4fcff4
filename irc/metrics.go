package irc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	// ConnectionsTotal counts accepted connections
	ConnectionsTotal prometheus.Counter

	// Sessions is the number of connected sessions
	Sessions prometheus.Gauge

	// RegisteredSessions is the number of sessions past the handshake
	RegisteredSessions prometheus.Gauge

	// Channels is the number of live channels
	Channels prometheus.Gauge

	// CommandsTotal counts dispatched commands by verb
	CommandsTotal *prometheus.CounterVec

	// BytesReceived and BytesSent count raw socket traffic
	BytesReceived prometheus.Counter
	BytesSent     prometheus.Counter

	// DisconnectsTotal counts teardowns by cause
	DisconnectsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ircd_connections_total",
			Help: "Total number of accepted client connections",
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_sessions",
			Help: "Number of connected sessions",
		}),
		RegisteredSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_registered_sessions",
			Help: "Number of sessions that completed registration",
		}),
		Channels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_channels",
			Help: "Number of live channels",
		}),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ircd_commands_total",
				Help: "Total number of dispatched commands by verb",
			},
			[]string{"command"},
		),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "ircd_received_bytes_total",
			Help: "Bytes read from client sockets",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ircd_sent_bytes_total",
			Help: "Bytes written to client sockets",
		}),
		DisconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ircd_disconnects_total",
				Help: "Total number of session teardowns by cause",
			},
			[]string{"cause"},
		),
	}
}
