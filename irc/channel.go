package irc

import (
	"strconv"
	"strings"
)

// Channel represents an IRC channel. Members are referenced by session ID and
// kept in join order, which is the order NAMES and WHO list them in.
type Channel struct {
	Name  string
	Topic string

	members   []string
	memberSet map[string]struct{}
	operators map[string]struct{}

	InviteOnly      bool
	TopicRestricted bool

	key      string
	hasKey   bool
	limit    int
	hasLimit bool
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:      name,
		memberSet: make(map[string]struct{}),
		operators: make(map[string]struct{}),
	}
}

// Len returns the number of members.
func (c *Channel) Len() int {
	return len(c.members)
}

// Members returns member session IDs in join order.
func (c *Channel) Members() []string {
	out := make([]string, len(c.members))
	copy(out, c.members)
	return out
}

// HasMember checks if a session is in the channel
func (c *Channel) HasMember(id string) bool {
	_, ok := c.memberSet[id]
	return ok
}

// IsOperator checks if a member is a channel operator
func (c *Channel) IsOperator(id string) bool {
	_, ok := c.operators[id]
	return ok
}

// Operators returns operator session IDs in join order.
func (c *Channel) Operators() []string {
	var ops []string
	for _, id := range c.members {
		if c.IsOperator(id) {
			ops = append(ops, id)
		}
	}
	return ops
}

func (c *Channel) addMember(id string) {
	if c.HasMember(id) {
		return
	}
	c.memberSet[id] = struct{}{}
	c.members = append(c.members, id)
}

// removeMember drops a member and any operator status it held.
func (c *Channel) removeMember(id string) {
	if !c.HasMember(id) {
		return
	}
	delete(c.memberSet, id)
	delete(c.operators, id)
	for i, m := range c.members {
		if m == id {
			c.members = append(c.members[:i], c.members[i+1:]...)
			break
		}
	}
}

// setOperator grants or revokes operator status. Only members can hold it.
func (c *Channel) setOperator(id string, op bool) error {
	if !c.HasMember(id) {
		return ErrOperatorNotMember
	}
	if op {
		c.operators[id] = struct{}{}
	} else {
		delete(c.operators, id)
	}
	return nil
}

// Key returns the channel key and whether one is set.
func (c *Channel) Key() (string, bool) {
	return c.key, c.hasKey
}

// Limit returns the user limit and whether one is set.
func (c *Channel) Limit() (int, bool) {
	return c.limit, c.hasLimit
}

func (c *Channel) setKey(key string) {
	c.key, c.hasKey = key, true
}

func (c *Channel) clearKey() {
	c.key, c.hasKey = "", false
}

func (c *Channel) setLimit(n int) error {
	if n <= 0 {
		return ErrNonPositiveLimit
	}
	c.limit, c.hasLimit = n, true
	return nil
}

func (c *Channel) clearLimit() {
	c.limit, c.hasLimit = 0, false
}

// isFull reports whether a user limit is set and reached.
func (c *Channel) isFull() bool {
	return c.hasLimit && len(c.members) >= c.limit
}

// ModeString renders the channel modes, e.g. "+itkl secret 10". The key is only
// included when showKey is set.
func (c *Channel) ModeString(showKey bool) string {
	modes := []byte{'+'}
	var args []string

	if c.InviteOnly {
		modes = append(modes, CMODE_INVITEONLY)
	}
	if c.TopicRestricted {
		modes = append(modes, CMODE_TOPICLIMIT)
	}
	if c.hasKey {
		modes = append(modes, CMODE_KEY)
		if showKey {
			args = append(args, c.key)
		}
	}
	if c.hasLimit {
		modes = append(modes, CMODE_LIMIT)
		args = append(args, strconv.Itoa(c.limit))
	}

	if len(args) == 0 {
		return string(modes)
	}
	return string(modes) + " " + strings.Join(args, " ")
}
