package irc

import (
	"fmt"
	"strings"
)

// handleCap answers capability negotiation with an empty capability set.
func (e *Engine) handleCap(s *Session, m *Message) {
	switch strings.ToUpper(m.Params[0]) {
	case "LS", "LIST":
		e.send(s, NewMessage(e.cfg.Server.Name, "CAP", s.Nickname, strings.ToUpper(m.Params[0]), ""))
	case "REQ":
		e.send(s, NewMessage(e.cfg.Server.Name, "CAP", s.Nickname, "NAK", m.Param(1)))
	}
}

// handlePass handles a PASS command
func (e *Engine) handlePass(s *Session, m *Message) {
	if s.registered {
		e.sendError(s, ErrAlreadyRegistered)
		return
	}
	if len(m.Params) < 1 {
		e.sendError(s, targetErr(ErrNeedMoreParams, "PASS"))
		return
	}
	if !e.cfg.CheckPassword(m.Params[0]) {
		e.log.WithField("session", s.ID).Warn("Password mismatch")
		e.sendError(s, ErrPasswordMismatch)
		return
	}

	s.passwordAccepted = true
}

// handleNick handles a NICK command
func (e *Engine) handleNick(s *Session, m *Message) {
	if !s.passwordAccepted {
		e.sendError(s, ErrPasswordRequired)
		return
	}

	nick := m.Param(0)
	old := s.Prefix()
	oldNick := s.Nickname
	if err := e.reg.SetNick(s, nick); err != nil {
		e.sendError(s, err)
		return
	}

	if s.registered && oldNick != s.Nickname {
		e.broadcastPeers(s, NewMessage(old, "NICK", s.Nickname), true)
		e.log.WithField("session", s.ID).Infof("Nick changed from %s to %s", oldNick, s.Nickname)
	}
	e.tryRegister(s)
}

// handleUser handles a USER command
func (e *Engine) handleUser(s *Session, m *Message) {
	if s.registered {
		e.sendError(s, ErrAlreadyRegistered)
		return
	}
	if len(m.Params) < 4 || m.Params[0] == "" {
		e.sendError(s, targetErr(ErrNeedMoreParams, "USER"))
		return
	}

	s.Username = m.Params[0]
	s.Realname = m.Params[3]
	e.tryRegister(s)
}

// handlePing handles a PING command
func (e *Engine) handlePing(s *Session, m *Message) {
	if len(m.Params) < 1 || m.Params[0] == "" {
		e.sendError(s, ErrNoOrigin)
		return
	}
	e.send(s, NewMessage(e.cfg.Server.Name, "PONG", e.cfg.Server.Name, m.Params[0]))
}

// handlePong handles a PONG command
func (e *Engine) handlePong(_ *Session, _ *Message) {}

// handleQuit handles a QUIT command
func (e *Engine) handleQuit(s *Session, m *Message) {
	reason := m.Param(0)
	if reason == "" {
		reason = "Client Quit"
	}

	e.sendRaw(s, fmt.Sprintf("ERROR :Closing Link: %s (%s)", s.Hostname, reason))
	e.disconnect(s, causeQuit, reason)
}
