package irc

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RegistrationState is the position of a session in the PASS/NICK/USER handshake.
type RegistrationState int

const (
	Unauthenticated RegistrationState = iota
	PasswordAccepted
	Registered
)

func (s RegistrationState) String() string {
	switch s {
	case PasswordAccepted:
		return "password-accepted"
	case Registered:
		return "registered"
	default:
		return "unauthenticated"
	}
}

// Session represents one connected client
type Session struct {
	ID       string
	Hostname string
	Nickname string
	Username string
	Realname string

	passwordAccepted bool
	registered       bool
	closed           bool

	channels    map[string]struct{} // folded channel names
	invited     map[string]struct{} // folded channel names
	transport   *transport
	connectedAt time.Time
}

func newSession(hostname string, t *transport) *Session {
	return &Session{
		ID:          uuid.New().String(),
		Hostname:    hostname,
		Nickname:    placeholderNick,
		channels:    make(map[string]struct{}),
		invited:     make(map[string]struct{}),
		transport:   t,
		connectedAt: time.Now(),
	}
}

// State returns the registration state.
func (s *Session) State() RegistrationState {
	switch {
	case s.registered:
		return Registered
	case s.passwordAccepted:
		return PasswordAccepted
	default:
		return Unauthenticated
	}
}

// IsRegistered reports whether the handshake has completed.
func (s *Session) IsRegistered() bool {
	return s.registered
}

// Prefix returns the nick!user@host source of messages from this session.
func (s *Session) Prefix() string {
	return FormatHostmask(s.Nickname, s.Username, s.Hostname)
}

// Channels returns the folded names of the channels the session occupies, sorted.
func (s *Session) Channels() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsInvited reports whether a standing invite exists for the folded channel name.
func (s *Session) IsInvited(folded string) bool {
	_, ok := s.invited[folded]
	return ok
}

// readyToRegister reports whether all three handshake conditions hold.
func (s *Session) readyToRegister() bool {
	return !s.registered && s.passwordAccepted && s.Nickname != placeholderNick && s.Username != ""
}
