package irc

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/presbrey/relay/irc/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrServerClosed is returned by Do once the event loop has exited.
var ErrServerClosed = errors.New("irc: server closed")

const (
	eventQueueSize = 256
	readBufferSize = 4096
)

type acceptEvent struct {
	conn net.Conn
}

type readEvent struct {
	id   string
	data []byte
	err  error
}

type writeEvent struct {
	id  string
	n   int
	err error
}

type callEvent struct {
	fn   func()
	done chan struct{}
}

// Server is the IRC relay. A single loop goroutine owns every session and
// channel; socket goroutines only perform blocking I/O and report back through
// the event channel.
type Server struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	registry *prometheus.Registry
	metrics  *Metrics
	reg      *Registry
	engine   *Engine

	listener net.Listener
	events   chan interface{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithRegistry sets the Prometheus registry the server's collectors are
// registered with.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// NewServer creates a server for cfg. Call Run to serve.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("irc: nil config")
	}

	s := &Server{
		cfg:    cfg,
		log:    logrus.StandardLogger(),
		events: make(chan interface{}, eventQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.metrics = NewMetrics(s.registry)
	s.reg = NewRegistry(Limits{
		NickLength:    cfg.Limits.NickLength,
		ChannelLength: cfg.Limits.ChannelLength,
	})
	s.engine = NewEngine(cfg, s.reg, s.log, s.metrics)
	return s, nil
}

// Registry returns the Prometheus registry holding the server's collectors.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Listen binds the configured address. Run calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}

	l, err := net.Listen("tcp", s.cfg.GetListenAddress())
	if err != nil {
		return errors.Wrap(err, "failed to start IRC listener")
	}
	s.listener = l
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled or Stop is called. Sessions still connected
// at that point receive an ERROR line and are closed.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	defer close(s.done)

	s.started = time.Now()
	s.log.Infof("IRC Server started on %s", s.listener.Addr())
	go s.acceptConnections()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-s.stop:
			s.shutdown()
			return nil
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

// Stop asks the event loop to exit after the event it is processing.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Do runs fn on the event loop and waits for it to return. fn may read the
// registry freely but must not retain anything from it.
func (s *Server) Do(ctx context.Context, fn func(*Registry)) error {
	return s.do(ctx, func() { fn(s.reg) })
}

// Announce sends a PRIVMSG, or a NOTICE when notice is set, from the server
// itself to a channel or a registered nickname.
func (s *Server) Announce(ctx context.Context, target, text string, notice bool) error {
	var result error
	if err := s.do(ctx, func() { result = s.engine.announce(target, text, notice) }); err != nil {
		return err
	}
	return result
}

func (s *Server) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.events <- callEvent{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrServerClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrServerClosed
	}
}

func (s *Server) shutdown() {
	s.log.Info("Stopping IRC server...")
	s.listener.Close()
	s.engine.shutdown()
	s.settleWrites()
	s.discardEvents()
	s.log.Info("IRC server stopped")
}

// settleWrites waits, up to the write timeout, for writes that were in flight
// when their sessions were released, so farewell lines go out whole.
func (s *Server) settleWrites() {
	grace := s.cfg.Limits.WriteTimeout
	if grace <= 0 {
		grace = time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	for len(s.engine.draining) > 0 {
		select {
		case ev := <-s.events:
			s.discard(ev)
		case <-timer.C:
			s.engine.abortDraining()
			return
		}
	}
}

// discardEvents empties the event queue once the loop has stopped serving.
func (s *Server) discardEvents() {
	for {
		select {
		case ev := <-s.events:
			s.discard(ev)
		default:
			return
		}
	}
}

// discard handles an event arriving after shutdown: accepted connections are
// closed and pending writes of released sessions completed.
func (s *Server) discard(ev interface{}) {
	switch ev := ev.(type) {
	case acceptEvent:
		ev.conn.Close()
	case writeEvent:
		s.engine.finishWrite(ev.id, ev.n, ev.err)
	}
}

// post hands an event to the loop. It reports false once the loop has exited.
func (s *Server) post(ev interface{}) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// acceptConnections accepts incoming client connections
func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.done:
				return
			default:
				s.log.WithError(err).Warn("Error accepting connection")
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		if !s.post(acceptEvent{conn: conn}) {
			conn.Close()
			return
		}
	}
}

func (s *Server) readConnection(id string, conn net.Conn) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !s.post(readEvent{id: id, data: data}) {
				return
			}
		}
		if err != nil {
			s.post(readEvent{id: id, err: err})
			return
		}
	}
}

// writeConnection writes chunks handed over by the transport until it is
// closed, then closes the socket.
func (s *Server) writeConnection(id string, conn net.Conn, writes <-chan []byte) {
	defer conn.Close()
	for chunk := range writes {
		if timeout := s.cfg.Limits.WriteTimeout; timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		n, err := conn.Write(chunk)
		s.post(writeEvent{id: id, n: n, err: err})
	}
}

func (s *Server) dispatch(ev interface{}) {
	switch ev := ev.(type) {
	case acceptEvent:
		s.handleAccept(ev.conn)
	case readEvent:
		s.handleRead(ev)
	case writeEvent:
		s.handleWrite(ev)
	case callEvent:
		ev.fn()
		close(ev.done)
	}
	s.settle()
}

func (s *Server) handleAccept(conn net.Conn) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	t := newTransport(s.cfg.Limits.MaxSendQ, s.cfg.Limits.MaxLineLength)
	sess := newSession(host, t)
	s.engine.accept(sess)

	go s.readConnection(sess.ID, conn)
	go s.writeConnection(sess.ID, conn, t.writes)
}

func (s *Server) handleRead(ev readEvent) {
	sess := s.reg.Session(ev.id)
	if sess == nil || sess.closed {
		return
	}

	if ev.err != nil {
		if errors.Is(ev.err, io.EOF) {
			s.engine.disconnect(sess, causeClosed, "Connection closed")
		} else {
			s.engine.disconnect(sess, causeError, "Read error: "+ev.err.Error())
		}
		return
	}

	s.metrics.BytesReceived.Add(float64(len(ev.data)))
	if err := sess.transport.appendInbound(ev.data); err != nil {
		s.engine.disconnect(sess, causeLine, "Input line too long")
		return
	}

	for !sess.closed {
		line, ok := sess.transport.nextLine()
		if !ok {
			break
		}
		s.engine.Handle(sess, line)
	}
}

func (s *Server) handleWrite(ev writeEvent) {
	s.metrics.BytesSent.Add(float64(ev.n))
	sess := s.reg.Session(ev.id)
	if sess == nil || sess.closed {
		s.engine.finishWrite(ev.id, ev.n, ev.err)
		return
	}

	if err := sess.transport.completeWrite(ev.n, ev.err); err != nil {
		s.engine.disconnect(sess, causeError, "Write error: "+errors.Cause(err).Error())
		return
	}
	s.flush(sess)
}

// settle runs deferred teardowns and flushes every session with new output.
// A failed flush tears its session down, which can queue output for peers, so
// this repeats until nothing is left.
func (s *Server) settle() {
	for {
		s.engine.reap()
		pending := s.engine.takeOutbox()
		if len(pending) == 0 {
			return
		}
		for _, sess := range pending {
			s.flush(sess)
		}
	}
}

func (s *Server) flush(sess *Session) {
	if sess.closed {
		return
	}
	if sess.transport.flushOutbound() == FlushFailed {
		s.engine.disconnect(sess, causeError, "Write error")
	}
}

// Stats is a point-in-time summary of the server.
type Stats struct {
	Sessions           int     `json:"sessions"`
	RegisteredSessions int     `json:"registered_sessions"`
	Channels           int     `json:"channels"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// ChannelInfo describes one channel for the admin surface.
type ChannelInfo struct {
	Name    string `json:"name"`
	Topic   string `json:"topic"`
	Members int    `json:"members"`
	Modes   string `json:"modes"`
}

// Stats takes a snapshot of the server counters.
func (s *Server) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.Do(ctx, func(r *Registry) {
		stats.Sessions = r.SessionCount()
		stats.Channels = r.ChannelCount()
		for _, sess := range r.sessions {
			if sess.registered {
				stats.RegisteredSessions++
			}
		}
		stats.UptimeSeconds = time.Since(s.started).Seconds()
	})
	return stats, err
}

// Channels takes a snapshot of every channel, sorted by name. Keys are hidden.
func (s *Server) Channels(ctx context.Context) ([]ChannelInfo, error) {
	var infos []ChannelInfo
	err := s.Do(ctx, func(r *Registry) {
		for _, ch := range r.Channels() {
			infos = append(infos, ChannelInfo{
				Name:    ch.Name,
				Topic:   ch.Topic,
				Members: ch.Len(),
				Modes:   ch.ModeString(false),
			})
		}
	})
	return infos, err
}
