package irc

import "strings"

// handlePrivmsg handles a PRIVMSG command
func (e *Engine) handlePrivmsg(s *Session, m *Message) {
	e.relay(s, m, false)
}

// handleNotice handles a NOTICE command. Failures are never answered.
func (e *Engine) handleNotice(s *Session, m *Message) {
	e.relay(s, m, true)
}

func (e *Engine) relay(s *Session, m *Message, quiet bool) {
	fail := func(err error) {
		if !quiet {
			e.sendError(s, err)
		}
	}

	if len(m.Params) < 1 || m.Params[0] == "" {
		fail(targetErr(ErrNoRecipient))
		return
	}
	if len(m.Params) < 2 || m.Params[1] == "" {
		fail(ErrNoTextToSend)
		return
	}
	text := m.Params[1]

	for _, target := range strings.Split(m.Params[0], ",") {
		if target == "" {
			continue
		}

		if isChannelName(target) {
			ch := e.reg.Channel(target)
			if ch == nil {
				fail(targetErr(ErrNoSuchChannel, target))
				continue
			}
			if !ch.HasMember(s.ID) {
				fail(targetErr(ErrCannotSendToChan, ch.Name))
				continue
			}
			e.broadcast(ch, NewMessage(s.Prefix(), m.Command, ch.Name, text), s)
			continue
		}

		recipient := e.reg.SessionByNick(target)
		if recipient == nil || !recipient.registered {
			fail(targetErr(ErrNoSuchNick, target))
			continue
		}
		e.send(recipient, NewMessage(s.Prefix(), m.Command, recipient.Nickname, text))
	}
}
