package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelMembership(t *testing.T) {
	ch := newChannel("#Test")
	ch.addMember("a")
	ch.addMember("b")
	ch.addMember("c")
	ch.addMember("b")

	assert.Equal(t, 3, ch.Len())
	assert.Equal(t, []string{"a", "b", "c"}, ch.Members())
	assert.True(t, ch.HasMember("b"))

	assert.NoError(t, ch.setOperator("b", true))
	assert.ErrorIs(t, ch.setOperator("z", true), ErrOperatorNotMember)
	assert.Equal(t, []string{"b"}, ch.Operators())

	// removing a member drops its operator status
	ch.removeMember("b")
	assert.False(t, ch.HasMember("b"))
	assert.False(t, ch.IsOperator("b"))
	assert.Equal(t, []string{"a", "c"}, ch.Members())
	assert.Empty(t, ch.Operators())

	ch.removeMember("nobody")
	assert.Equal(t, 2, ch.Len())
}

func TestChannelKeyAndLimit(t *testing.T) {
	ch := newChannel("#test")

	_, has := ch.Key()
	assert.False(t, has)

	ch.setKey("")
	key, has := ch.Key()
	assert.True(t, has, "an empty key is still a key")
	assert.Empty(t, key)
	ch.clearKey()
	_, has = ch.Key()
	assert.False(t, has)

	assert.ErrorIs(t, ch.setLimit(0), ErrNonPositiveLimit)
	assert.ErrorIs(t, ch.setLimit(-3), ErrNonPositiveLimit)
	_, has = ch.Limit()
	assert.False(t, has)

	assert.NoError(t, ch.setLimit(1))
	assert.False(t, ch.isFull())
	ch.addMember("a")
	assert.True(t, ch.isFull())
	ch.clearLimit()
	assert.False(t, ch.isFull())
}

func TestChannelModeString(t *testing.T) {
	ch := newChannel("#test")
	assert.Equal(t, "+", ch.ModeString(true))

	ch.InviteOnly = true
	ch.TopicRestricted = true
	ch.setKey("sekrit")
	ch.setLimit(10)
	assert.Equal(t, "+itkl sekrit 10", ch.ModeString(true))
	assert.Equal(t, "+itkl 10", ch.ModeString(false))

	ch.clearLimit()
	assert.Equal(t, "+itk", ch.ModeString(false))
}
