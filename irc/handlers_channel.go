package irc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// handleJoin handles a JOIN command
func (e *Engine) handleJoin(s *Session, m *Message) {
	names := strings.Split(m.Params[0], ",")
	var keys []string
	if len(m.Params) > 1 {
		keys = strings.Split(m.Params[1], ",")
	}

	for i, name := range names {
		if name == "" {
			continue
		}
		key := ""
		if i < len(keys) {
			key = keys[i]
		}

		ch, created, err := e.reg.Join(s, name, key)
		if errors.Is(err, errAlreadyJoined) {
			continue
		}
		if err != nil {
			e.sendError(s, err)
			continue
		}
		if created {
			e.metrics.Channels.Set(float64(e.reg.ChannelCount()))
			e.log.WithField("channel", ch.Name).Infof("Channel created by %s", s.Nickname)
		}

		e.broadcast(ch, &Message{Prefix: s.Prefix(), Command: "JOIN", Params: []string{ch.Name}}, nil)
		e.sendTopic(s, ch)
		e.sendNames(s, ch)
	}
}

// handlePart handles a PART command
func (e *Engine) handlePart(s *Session, m *Message) {
	reason := m.Param(1)
	for _, name := range strings.Split(m.Params[0], ",") {
		if name == "" {
			continue
		}
		err := e.reg.Part(s, name, func(ch *Channel) {
			msg := &Message{Prefix: s.Prefix(), Command: "PART", Params: []string{ch.Name}}
			if reason != "" {
				msg = NewMessage(s.Prefix(), "PART", ch.Name, reason)
			}
			e.broadcast(ch, msg, nil)
		})
		if err != nil {
			e.sendError(s, err)
		}
	}
	e.metrics.Channels.Set(float64(e.reg.ChannelCount()))
}

// handleKick handles a KICK command
func (e *Engine) handleKick(s *Session, m *Message) {
	reason := m.Param(2)
	if reason == "" {
		reason = s.Nickname
	}

	err := e.reg.Kick(s, m.Params[0], m.Params[1], func(ch *Channel, target *Session) {
		e.broadcast(ch, NewMessage(s.Prefix(), "KICK", ch.Name, target.Nickname, reason), nil)
	})
	if err != nil {
		e.sendError(s, err)
		return
	}
	e.metrics.Channels.Set(float64(e.reg.ChannelCount()))
}

// handleInvite handles an INVITE command
func (e *Engine) handleInvite(s *Session, m *Message) {
	target, ch, err := e.reg.Invite(s, m.Params[0], m.Params[1])
	if err != nil {
		e.sendError(s, err)
		return
	}

	e.sendNumeric(s, RPL_INVITING, fmt.Sprintf("%s %s", target.Nickname, ch.Name))
	e.send(target, &Message{Prefix: s.Prefix(), Command: "INVITE", Params: []string{target.Nickname, ch.Name}})
}

// handleTopic handles a TOPIC command
func (e *Engine) handleTopic(s *Session, m *Message) {
	if len(m.Params) < 2 {
		ch, err := e.reg.Topic(s, m.Params[0])
		if err != nil {
			e.sendError(s, err)
			return
		}
		e.sendTopic(s, ch)
		return
	}

	ch, err := e.reg.SetTopic(s, m.Params[0], m.Params[1])
	if err != nil {
		e.sendError(s, err)
		return
	}
	e.broadcast(ch, NewMessage(s.Prefix(), "TOPIC", ch.Name, ch.Topic), nil)
}

func (e *Engine) sendTopic(s *Session, ch *Channel) {
	if ch.Topic == "" {
		e.sendNumeric(s, RPL_NOTOPIC, ch.Name+" :No topic is set")
		return
	}
	e.sendNumeric(s, RPL_TOPIC, ch.Name+" :"+ch.Topic)
}

// handleMode handles a MODE command for channels and nicknames
func (e *Engine) handleMode(s *Session, m *Message) {
	target := m.Params[0]
	if !isChannelName(target) {
		e.handleUserMode(s, m)
		return
	}

	if len(m.Params) < 2 {
		ch := e.reg.Channel(target)
		if ch == nil {
			e.sendError(s, targetErr(ErrNoSuchChannel, target))
			return
		}
		e.sendNumeric(s, RPL_CHANNELMODEIS, ch.Name+" "+ch.ModeString(ch.HasMember(s.ID)))
		return
	}

	ch, change, errs, err := e.reg.ApplyModes(s, target, m.Params[1], m.Params[2:])
	if err != nil {
		e.sendError(s, err)
		return
	}
	for _, err := range errs {
		e.sendError(s, err)
	}
	if !change.Empty() {
		msg := &Message{Prefix: s.Prefix(), Command: "MODE", Params: append([]string{ch.Name}, change.Params()...)}
		e.broadcast(ch, msg, nil)
		e.log.WithField("channel", ch.Name).Debugf("Mode %s by %s", change, s.Nickname)
	}
}

// handleUserMode reports user modes. No user modes are supported.
func (e *Engine) handleUserMode(s *Session, m *Message) {
	nick := m.Params[0]
	target := e.reg.SessionByNick(nick)
	switch {
	case target == nil:
		e.sendError(s, targetErr(ErrNoSuchNick, nick))
	case target != s:
		e.sendError(s, ErrUsersDontMatch)
	default:
		e.sendNumeric(s, RPL_UMODEIS, "+")
	}
}

// handleNames handles a NAMES command
func (e *Engine) handleNames(s *Session, m *Message) {
	if len(m.Params) == 0 {
		for _, ch := range e.reg.Channels() {
			e.sendNameReply(s, ch)
		}
		e.sendNumeric(s, RPL_ENDOFNAMES, "* :End of /NAMES list")
		return
	}

	for _, name := range strings.Split(m.Params[0], ",") {
		if name == "" {
			continue
		}
		if ch := e.reg.Channel(name); ch != nil {
			e.sendNameReply(s, ch)
			name = ch.Name
		}
		e.sendNumeric(s, RPL_ENDOFNAMES, name+" :End of /NAMES list")
	}
}

func (e *Engine) sendNames(s *Session, ch *Channel) {
	e.sendNameReply(s, ch)
	e.sendNumeric(s, RPL_ENDOFNAMES, ch.Name+" :End of /NAMES list")
}

func (e *Engine) sendNameReply(s *Session, ch *Channel) {
	e.sendNumeric(s, RPL_NAMREPLY, fmt.Sprintf("= %s :%s", ch.Name, strings.Join(e.reg.Names(ch), " ")))
}

// handleWho handles a WHO command for a channel or a nickname
func (e *Engine) handleWho(s *Session, m *Message) {
	mask := m.Param(0)
	if mask == "" {
		e.sendNumeric(s, RPL_ENDOFWHO, "* :End of WHO list")
		return
	}

	if isChannelName(mask) {
		if ch := e.reg.Channel(mask); ch != nil {
			for _, id := range ch.members {
				if member := e.reg.Session(id); member != nil {
					e.sendWhoReply(s, ch.Name, member, ch.IsOperator(id))
				}
			}
		}
	} else if target := e.reg.SessionByNick(mask); target != nil && target.registered {
		e.sendWhoReply(s, "*", target, false)
	}
	e.sendNumeric(s, RPL_ENDOFWHO, mask+" :End of WHO list")
}

func (e *Engine) sendWhoReply(s *Session, channel string, target *Session, op bool) {
	flags := "H"
	if op {
		flags += "@"
	}
	e.sendNumeric(s, RPL_WHOREPLY, fmt.Sprintf("%s %s %s %s %s %s :0 %s",
		channel, target.Username, target.Hostname, e.cfg.Server.Name, target.Nickname, flags, target.Realname))
}
