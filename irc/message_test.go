package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		line    string
		prefix  string
		command string
		params  []string
	}{
		{"NICK alice", "", "NICK", []string{"alice"}},
		{"nick alice", "", "NICK", []string{"alice"}},
		{":alice!a@host PRIVMSG #test :hello  world", "alice!a@host", "PRIVMSG", []string{"#test", "hello  world"}},
		{"USER alice 0 * :Alice A", "", "USER", []string{"alice", "0", "*", "Alice A"}},
		{"MODE   #test   +kl    key 10", "", "MODE", []string{"#test", "+kl", "key", "10"}},
		{"TOPIC #test :", "", "TOPIC", []string{"#test", ""}},
		{"PRIVMSG bob ::-)", "", "PRIVMSG", []string{"bob", ":-)"}},
		{"PING", "", "PING", []string{}},
		{"  QUIT", "", "QUIT", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msg := ParseMessage(tt.line)
			require.NotNil(t, msg)
			assert.Equal(t, tt.prefix, msg.Prefix)
			assert.Equal(t, tt.command, msg.Command)
			assert.Equal(t, tt.params, msg.Params)
		})
	}
}

func TestParseMessageUnusable(t *testing.T) {
	for _, line := range []string{"", "   ", ":prefixonly", ":prefix ", ":prefix    "} {
		assert.Nil(t, ParseMessage(line), "line %q", line)
	}
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, ":srv 001 alice :Welcome home",
		NewMessage("srv", "001", "alice", "Welcome home").String())
	assert.Equal(t, ":alice!a@h JOIN #test",
		(&Message{Prefix: "alice!a@h", Command: "JOIN", Params: []string{"#test"}}).String())
	assert.Equal(t, "MODE #test +k :two words",
		(&Message{Command: "MODE", Params: []string{"#test", "+k", "two words"}}).String())
	assert.Equal(t, "TOPIC #test :",
		(&Message{Command: "TOPIC", Params: []string{"#test", ""}}).String())
	assert.Equal(t, "QUIT", (&Message{Command: "QUIT"}).String())
}

func TestMessageRoundTrip(t *testing.T) {
	orig := NewMessage("alice!a@host", "PRIVMSG", "#test", "  spaced  out : text ")
	parsed := ParseMessage(orig.String())
	require.NotNil(t, parsed)
	assert.Equal(t, orig.Prefix, parsed.Prefix)
	assert.Equal(t, orig.Command, parsed.Command)
	assert.Equal(t, orig.Params, parsed.Params)
	assert.Equal(t, orig.String(), parsed.String())
}

func TestParam(t *testing.T) {
	msg := ParseMessage("KICK #test bob")
	assert.Equal(t, "#test", msg.Param(0))
	assert.Equal(t, "bob", msg.Param(1))
	assert.Equal(t, "", msg.Param(2))
	assert.Equal(t, "", msg.Param(-1))
}

func TestHostmask(t *testing.T) {
	nick, user, host := ParseHostmask("alice!al@example.org")
	assert.Equal(t, "alice", nick)
	assert.Equal(t, "al", user)
	assert.Equal(t, "example.org", host)
	assert.Equal(t, "alice!al@example.org", FormatHostmask(nick, user, host))

	nick, user, host = ParseHostmask("server.name")
	assert.Equal(t, "server.name", nick)
	assert.Empty(t, user)
	assert.Empty(t, host)
}
