package irc

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/presbrey/relay/irc/config"
	"github.com/sirupsen/logrus"
)

// Version is reported in the welcome sequence.
const Version = "relay-1.0"

// Disconnect causes, used as the metrics label.
const (
	causeQuit     = "quit"
	causeClosed   = "closed"
	causeError    = "error"
	causeSendQ    = "sendq"
	causeLine     = "line_too_long"
	causeShutdown = "shutdown"
)

type handlerFunc func(e *Engine, s *Session, m *Message)

type command struct {
	handler         handlerFunc
	minParams       int
	preRegistration bool
}

var commands = map[string]command{
	"CAP":     {handler: (*Engine).handleCap, minParams: 1, preRegistration: true},
	"PASS":    {handler: (*Engine).handlePass, preRegistration: true},
	"NICK":    {handler: (*Engine).handleNick, preRegistration: true},
	"USER":    {handler: (*Engine).handleUser, preRegistration: true},
	"PING":    {handler: (*Engine).handlePing, preRegistration: true},
	"PONG":    {handler: (*Engine).handlePong, preRegistration: true},
	"QUIT":    {handler: (*Engine).handleQuit, preRegistration: true},
	"JOIN":    {handler: (*Engine).handleJoin, minParams: 1},
	"PART":    {handler: (*Engine).handlePart, minParams: 1},
	"KICK":    {handler: (*Engine).handleKick, minParams: 2},
	"INVITE":  {handler: (*Engine).handleInvite, minParams: 2},
	"TOPIC":   {handler: (*Engine).handleTopic, minParams: 1},
	"MODE":    {handler: (*Engine).handleMode, minParams: 1},
	"PRIVMSG": {handler: (*Engine).handlePrivmsg},
	"NOTICE":  {handler: (*Engine).handleNotice},
	"NAMES":   {handler: (*Engine).handleNames},
	"WHO":     {handler: (*Engine).handleWho},
}

type doomed struct {
	session *Session
	cause   string
	reason  string
}

// Engine interprets parsed commands against the registry. Replies are queued on
// session transports; the reactor flushes every session left in the outbox after
// each event.
type Engine struct {
	cfg     *config.Config
	reg     *Registry
	log     logrus.FieldLogger
	metrics *Metrics
	created time.Time

	outbox   map[string]*Session
	doomed   []doomed
	draining map[string]*transport // released sessions still waiting on a write
}

// NewEngine creates a command engine over reg.
func NewEngine(cfg *config.Config, reg *Registry, logger logrus.FieldLogger, metrics *Metrics) *Engine {
	return &Engine{
		cfg:      cfg,
		reg:      reg,
		log:      logger,
		metrics:  metrics,
		created:  time.Now(),
		outbox:   make(map[string]*Session),
		draining: make(map[string]*transport),
	}
}

// Handle parses one inbound line and executes it. Unparseable lines are ignored.
func (e *Engine) Handle(s *Session, line string) {
	if s.closed {
		return
	}
	e.log.WithField("session", s.ID).Debugf("<= %s", line)

	msg := ParseMessage(line)
	if msg == nil {
		return
	}
	e.Execute(s, msg)
}

// Execute dispatches a parsed message.
func (e *Engine) Execute(s *Session, m *Message) {
	cmd, known := commands[m.Command]
	if known {
		e.metrics.CommandsTotal.WithLabelValues(m.Command).Inc()
	} else {
		e.metrics.CommandsTotal.WithLabelValues("unknown").Inc()
	}

	if !s.registered && !(known && cmd.preRegistration) {
		e.sendError(s, ErrNotRegistered)
		return
	}
	if !known {
		e.sendError(s, targetErr(ErrUnknownCommand, m.Command))
		return
	}
	if len(m.Params) < cmd.minParams {
		e.sendError(s, targetErr(ErrNeedMoreParams, m.Command))
		return
	}

	cmd.handler(e, s, m)
}

// send queues msg for s. A session whose queue overflows is scheduled for
// teardown once the current event has been handled.
func (e *Engine) send(s *Session, msg *Message) {
	e.sendRaw(s, msg.String())
}

func (e *Engine) sendRaw(s *Session, line string) {
	if s.closed {
		return
	}

	if err := s.transport.enqueueOutbound(line); err != nil {
		if errors.Is(err, ErrSendQExceeded) {
			e.doom(s, causeSendQ, "SendQ exceeded")
		}
		return
	}
	e.log.WithField("session", s.ID).Debugf("=> %s", line)
	e.outbox[s.ID] = s
}

// sendNumeric sends ":<server> <code> <nick> <message>", message being the
// already formatted parameters.
func (e *Engine) sendNumeric(s *Session, code int, message string) {
	e.sendRaw(s, fmt.Sprintf(":%s %03d %s %s", e.cfg.Server.Name, code, s.Nickname, message))
}

// sendError renders err as its numeric reply.
func (e *Engine) sendError(s *Session, err error) {
	reply, targets, ok := replyFor(err)
	if !ok {
		e.log.WithError(err).WithField("session", s.ID).Warn("Error without numeric reply")
		return
	}

	message := ":" + reply.text
	if len(targets) > 0 {
		message = strings.Join(targets, " ") + " " + message
	}
	e.sendNumeric(s, reply.code, message)
}

// broadcast sends msg to every member of ch except the optional excluded session.
func (e *Engine) broadcast(ch *Channel, msg *Message, except *Session) {
	line := msg.String()
	for _, id := range ch.members {
		if except != nil && id == except.ID {
			continue
		}
		if member := e.reg.Session(id); member != nil {
			e.sendRaw(member, line)
		}
	}
}

// broadcastPeers sends msg once to every session sharing a channel with s,
// and to s itself when includeSelf is set.
func (e *Engine) broadcastPeers(s *Session, msg *Message, includeSelf bool) {
	line := msg.String()
	seen := map[string]bool{s.ID: true}
	if includeSelf {
		e.sendRaw(s, line)
	}
	for _, folded := range s.Channels() {
		ch := e.reg.channels[folded]
		if ch == nil {
			continue
		}
		for _, id := range ch.members {
			if seen[id] {
				continue
			}
			seen[id] = true
			if peer := e.reg.Session(id); peer != nil {
				e.sendRaw(peer, line)
			}
		}
	}
}

func (e *Engine) doom(s *Session, cause, reason string) {
	for _, d := range e.doomed {
		if d.session == s {
			return
		}
	}
	e.doomed = append(e.doomed, doomed{session: s, cause: cause, reason: reason})
}

// reap tears down sessions scheduled for removal during the last event.
func (e *Engine) reap() {
	for len(e.doomed) > 0 {
		d := e.doomed[0]
		e.doomed = e.doomed[1:]
		e.disconnect(d.session, d.cause, d.reason)
	}
}

// takeOutbox returns the sessions with newly queued output and resets the set.
func (e *Engine) takeOutbox() []*Session {
	if len(e.outbox) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(e.outbox))
	for _, s := range e.outbox {
		out = append(out, s)
	}
	e.outbox = make(map[string]*Session)
	return out
}

// accept registers a freshly connected session.
func (e *Engine) accept(s *Session) {
	e.reg.addSession(s)
	e.metrics.ConnectionsTotal.Inc()
	e.metrics.Sessions.Set(float64(e.reg.SessionCount()))
	e.log.WithFields(logrus.Fields{"session": s.ID, "host": s.Hostname}).Info("Client connected")
}

// disconnect removes s from every channel, telling remaining members, drops it
// from the registry and releases its transport.
func (e *Engine) disconnect(s *Session, cause, reason string) {
	if s.closed {
		return
	}

	e.broadcastPeers(s, NewMessage(s.Prefix(), "QUIT", reason), false)
	e.release(s, cause)

	e.log.WithFields(logrus.Fields{
		"session": s.ID,
		"nick":    s.Nickname,
		"reason":  reason,
	}).Info("Client disconnected")
}

func (e *Engine) release(s *Session, cause string) {
	wasRegistered := s.registered
	e.reg.removeSession(s)
	s.closed = true
	if !s.transport.close() {
		e.draining[s.ID] = s.transport
	}
	delete(e.outbox, s.ID)

	e.metrics.DisconnectsTotal.WithLabelValues(cause).Inc()
	e.metrics.Sessions.Set(float64(e.reg.SessionCount()))
	e.metrics.Channels.Set(float64(e.reg.ChannelCount()))
	if wasRegistered {
		e.metrics.RegisteredSessions.Dec()
	}
}

// finishWrite completes the teardown of a session released while a write was
// in flight.
func (e *Engine) finishWrite(id string, n int, err error) {
	if t, ok := e.draining[id]; ok {
		delete(e.draining, id)
		t.finish(n, err)
	}
}

// abortDraining ends every transport still waiting on a write.
func (e *Engine) abortDraining() {
	for id, t := range e.draining {
		delete(e.draining, id)
		t.abort()
	}
}

// shutdown tells every session the server is going away and releases them all.
func (e *Engine) shutdown() {
	for _, s := range e.reg.Sessions() {
		e.sendRaw(s, "ERROR :Server shutting down")
		e.release(s, causeShutdown)
	}
	e.doomed = nil
}

// tryRegister completes the handshake once password, nick and user are all set.
func (e *Engine) tryRegister(s *Session) {
	if !s.readyToRegister() {
		return
	}
	s.registered = true
	e.metrics.RegisteredSessions.Inc()
	e.log.WithFields(logrus.Fields{"session": s.ID, "nick": s.Nickname}).Info("Client registered")

	server := e.cfg.Server.Name
	e.sendNumeric(s, RPL_WELCOME, fmt.Sprintf(":Welcome to the %s IRC Network %s", e.cfg.Server.Network, s.Prefix()))
	e.sendNumeric(s, RPL_YOURHOST, fmt.Sprintf(":Your host is %s, running version %s", server, Version))
	e.sendNumeric(s, RPL_CREATED, fmt.Sprintf(":This server was created %s", e.created.Format(time.RFC1123)))
	e.sendNumeric(s, RPL_MYINFO, fmt.Sprintf("%s %s o itkol", server, Version))
	e.sendNumeric(s, RPL_ISUPPORT, fmt.Sprintf(
		"CHANTYPES=#& PREFIX=(o)@ CHANMODES=,k,l,it NICKLEN=%d CHANNELLEN=%d CASEMAPPING=ascii NETWORK=%s :are supported by this server",
		e.cfg.Limits.NickLength, e.cfg.Limits.ChannelLength, e.cfg.Server.Network))
	e.sendMotd(s)
}

func (e *Engine) sendMotd(s *Session) {
	motd := strings.TrimRight(e.cfg.Server.MOTD, "\r\n")
	if motd == "" {
		e.sendNumeric(s, ERR_NOMOTD, ":MOTD File is missing")
		return
	}

	e.sendNumeric(s, RPL_MOTDSTART, fmt.Sprintf(":- %s Message of the Day -", e.cfg.Server.Name))
	for _, line := range strings.Split(motd, "\n") {
		e.sendNumeric(s, RPL_MOTD, ":- "+strings.TrimRight(line, "\r"))
	}
	e.sendNumeric(s, RPL_ENDOFMOTD, ":End of MOTD command")
}

// announce relays text from the server to a channel or a registered nickname.
func (e *Engine) announce(target, text string, notice bool) error {
	command := "PRIVMSG"
	if notice {
		command = "NOTICE"
	}
	if text == "" {
		return ErrNoTextToSend
	}

	if isChannelName(target) {
		ch := e.reg.Channel(target)
		if ch == nil {
			return targetErr(ErrNoSuchChannel, target)
		}
		e.broadcast(ch, NewMessage(e.cfg.Server.Name, command, ch.Name, text), nil)
		return nil
	}

	recipient := e.reg.SessionByNick(target)
	if recipient == nil || !recipient.registered {
		return targetErr(ErrNoSuchNick, target)
	}
	e.send(recipient, NewMessage(e.cfg.Server.Name, command, recipient.Nickname, text))
	return nil
}
