package irc

import (
	"fmt"
	"strings"
)

// Message represents an IRC message
type Message struct {
	Prefix  string
	Command string
	Params  []string

	// Trailing forces the last parameter to be encoded with a leading colon
	// even when it would parse unambiguously without one.
	Trailing bool
}

// ParseMessage parses one line, already stripped of its terminator. It returns
// nil when the line carries no usable command.
func ParseMessage(line string) *Message {
	if line == "" {
		return nil
	}

	msg := &Message{
		Params: make([]string, 0),
	}

	// Check if the message has a prefix
	if line[0] == ':' {
		end := strings.IndexByte(line, ' ')
		if end < 0 {
			return nil
		}
		msg.Prefix = line[1:end]
		line = line[end+1:]
	}

	line = strings.TrimLeft(line, " ")
	end := strings.IndexByte(line, ' ')
	if end < 0 {
		end = len(line)
	}
	msg.Command = strings.ToUpper(line[:end])
	if msg.Command == "" {
		return nil
	}
	rest := line[end:]

	// Parse parameters
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}

		// A colon consumes the remainder of the line verbatim
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			msg.Trailing = true
			break
		}

		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			msg.Params = append(msg.Params, rest)
			break
		}
		msg.Params = append(msg.Params, rest[:end])
		rest = rest[end:]
	}

	return msg
}

// Param returns the i-th parameter or the empty string.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// String returns the string representation of the message
func (m *Message) String() string {
	var builder strings.Builder

	// Add prefix if present
	if m.Prefix != "" {
		builder.WriteString(":")
		builder.WriteString(m.Prefix)
		builder.WriteString(" ")
	}

	// Add command
	builder.WriteString(m.Command)

	// Add parameters
	for i, param := range m.Params {
		builder.WriteString(" ")

		if i == len(m.Params)-1 && (m.Trailing || needsColon(param)) {
			builder.WriteString(":")
		}
		builder.WriteString(param)
	}

	return builder.String()
}

func needsColon(param string) bool {
	return param == "" || strings.HasPrefix(param, ":") || strings.Contains(param, " ")
}

// NewMessage builds a message whose last parameter is sent as a trailing parameter.
func NewMessage(prefix, command string, params ...string) *Message {
	return &Message{
		Prefix:   prefix,
		Command:  command,
		Params:   params,
		Trailing: len(params) > 0,
	}
}

// ParseHostmask parses a hostmask (nick!user@host)
func ParseHostmask(hostmask string) (nick, user, host string) {
	nickParts := strings.SplitN(hostmask, "!", 2)
	if len(nickParts) < 2 {
		nick = hostmask
		return
	}
	nick = nickParts[0]

	userHostParts := strings.SplitN(nickParts[1], "@", 2)
	if len(userHostParts) < 2 {
		user = nickParts[1]
		return
	}
	user = userHostParts[0]
	host = userHostParts[1]

	return
}

// FormatHostmask formats a hostmask
func FormatHostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}
