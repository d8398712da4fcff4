package irc_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/presbrey/relay/irc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerRequiresConfig(t *testing.T) {
	_, err := irc.NewServer(nil)
	assert.Error(t, err)
}

func TestListenFailure(t *testing.T) {
	srv := startServer(t, testConfig())

	cfg := testConfig()
	cfg.Server.Port = srv.Addr().(*net.TCPAddr).Port
	other, err := irc.NewServer(cfg)
	require.NoError(t, err)
	assert.Error(t, other.Run(context.Background()))
}

func TestStopSendsError(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	srv, err := irc.NewServer(testConfig(), irc.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	c := NewIRCClient(t, srv.Addr().String())
	c.Register(t, "alice")

	srv.Stop()
	srv.Stop()
	assert.Equal(t, "ERROR :Server shutting down", c.Expect(t, "ERROR"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(timeout):
		t.Fatal("Run did not return")
	}

	assert.ErrorIs(t, srv.Do(context.Background(), func(*irc.Registry) {}), irc.ErrServerClosed)

	// the listener is gone
	_, err = net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestInputLineTooLong(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.MaxLineLength = 512
	srv := startServer(t, cfg)

	c := NewIRCClient(t, srv.Addr().String())
	_, err := c.Conn.Write([]byte(strings.Repeat("A", 2048)))
	require.NoError(t, err)

	c.Conn.SetReadDeadline(time.Now().Add(timeout))
	_, err = c.Reader.ReadString('\n')
	assert.Error(t, err, "connection is dropped")

	stats, err := srv.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sessions)
}

func TestStatsAndChannels(t *testing.T) {
	registry := prometheus.NewRegistry()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	srv, err := irc.NewServer(testConfig(), irc.WithLogger(logger), irc.WithRegistry(registry))
	require.NoError(t, err)
	assert.Same(t, registry, srv.Registry())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	alice := NewIRCClient(t, srv.Addr().String())
	alice.Register(t, "alice")
	alice.Join(t, "#b")
	alice.Join(t, "#a")
	require.NoError(t, alice.Send("MODE #a +ik key"))
	alice.Expect(t, "MODE #a +ik key")
	NewIRCClient(t, srv.Addr().String())

	// the second connection may still be in flight
	require.Eventually(t, func() bool {
		stats, err := srv.Stats(ctx)
		return err == nil && stats.Sessions == 2
	}, timeout, 10*time.Millisecond)

	stats, err := srv.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RegisteredSessions)
	assert.Equal(t, 2, stats.Channels)
	assert.Greater(t, stats.UptimeSeconds, 0.0)

	channels, err := srv.Channels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []irc.ChannelInfo{
		{Name: "#a", Members: 1, Modes: "+ik"},
		{Name: "#b", Members: 1, Modes: "+"},
	}, channels)

	families, err := registry.Gather()
	require.NoError(t, err)
	var sessions float64 = -1
	for _, f := range families {
		if f.GetName() == "ircd_sessions" {
			sessions = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(2), sessions)
}

func TestAnnounce(t *testing.T) {
	srv := startServer(t, testConfig())
	c := NewIRCClient(t, srv.Addr().String())
	c.Register(t, "alice")
	c.Join(t, "#news")

	require.NoError(t, srv.Announce(context.Background(), "#news", "hello from the server", false))
	assert.Equal(t, ":ft_irc PRIVMSG #news :hello from the server", c.Expect(t, "PRIVMSG"))

	assert.ErrorIs(t, srv.Announce(context.Background(), "#gone", "x", true), irc.ErrNoSuchChannel)
}
