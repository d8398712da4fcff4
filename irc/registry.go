package irc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// errAlreadyJoined marks a JOIN of a channel the session already occupies. It
// has no numeric and is dropped silently.
var errAlreadyJoined = errors.New("already joined")

// Limits bounds names accepted by the registry.
type Limits struct {
	NickLength    int
	ChannelLength int
}

// Registry owns every session and channel along with the case-folded nick
// index. It is only touched from the event loop.
type Registry struct {
	sessions map[string]*Session
	nicks    map[string]string   // folded nick -> session ID
	channels map[string]*Channel // folded name -> channel
	limits   Limits
}

// NewRegistry creates an empty registry.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		nicks:    make(map[string]string),
		channels: make(map[string]*Channel),
		limits:   limits,
	}
}

func (r *Registry) addSession(s *Session) {
	r.sessions[s.ID] = s
}

// Session looks up a session by ID.
func (r *Registry) Session(id string) *Session {
	return r.sessions[id]
}

// SessionByNick looks up a session by nickname, ignoring case.
func (r *Registry) SessionByNick(nick string) *Session {
	id, ok := r.nicks[foldName(nick)]
	if !ok {
		return nil
	}
	return r.sessions[id]
}

// Sessions returns all sessions ordered by connection time.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].connectedAt.Equal(out[j].connectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].connectedAt.Before(out[j].connectedAt)
	})
	return out
}

// SessionCount returns the number of connected sessions.
func (r *Registry) SessionCount() int {
	return len(r.sessions)
}

// Channel looks up a channel by name, ignoring case.
func (r *Registry) Channel(name string) *Channel {
	return r.channels[foldName(name)]
}

// Channels returns all channels ordered by folded name.
func (r *Registry) Channels() []*Channel {
	keys := make([]string, 0, len(r.channels))
	for k := range r.channels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Channel, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.channels[k])
	}
	return out
}

// ChannelCount returns the number of live channels.
func (r *Registry) ChannelCount() int {
	return len(r.channels)
}

// SetNick validates nick and claims it for s, releasing the previous one.
func (r *Registry) SetNick(s *Session, nick string) error {
	if nick == "" {
		return ErrNoNicknameGiven
	}
	if !isValidNickname(nick, r.limits.NickLength) {
		return targetErr(ErrErroneousNickname, nick)
	}

	folded := foldName(nick)
	if id, ok := r.nicks[folded]; ok && id != s.ID {
		return targetErr(ErrNicknameInUse, nick)
	}

	if s.Nickname != placeholderNick {
		delete(r.nicks, foldName(s.Nickname))
	}
	s.Nickname = nick
	r.nicks[folded] = s.ID
	return nil
}

// Join adds s to the named channel, creating it with s as operator when it does
// not exist. Existing channels enforce invite-only, key and limit in that order;
// a standing invite bypasses only the invite-only check and is consumed.
func (r *Registry) Join(s *Session, name, key string) (*Channel, bool, error) {
	if !isValidChannelName(name, r.limits.ChannelLength) {
		return nil, false, targetErr(ErrNoSuchChannel, name)
	}

	folded := foldName(name)
	ch, ok := r.channels[folded]
	if !ok {
		ch = newChannel(name)
		r.channels[folded] = ch
		r.enter(ch, s)
		ch.setOperator(s.ID, true)
		return ch, true, nil
	}

	if ch.HasMember(s.ID) {
		return ch, false, errAlreadyJoined
	}
	if ch.InviteOnly && !s.IsInvited(folded) {
		return nil, false, targetErr(ErrInviteOnlyChan, ch.Name)
	}
	if k, has := ch.Key(); has && k != key {
		return nil, false, targetErr(ErrBadChannelKey, ch.Name)
	}
	if ch.isFull() {
		return nil, false, targetErr(ErrChannelIsFull, ch.Name)
	}

	r.enter(ch, s)
	return ch, false, nil
}

func (r *Registry) enter(ch *Channel, s *Session) {
	folded := foldName(ch.Name)
	ch.addMember(s.ID)
	s.channels[folded] = struct{}{}
	delete(s.invited, folded)
}

// leave removes s from ch and drops the channel once it is empty.
func (r *Registry) leave(ch *Channel, s *Session) {
	folded := foldName(ch.Name)
	ch.removeMember(s.ID)
	delete(s.channels, folded)
	if ch.Len() == 0 {
		delete(r.channels, folded)
	}
}

// Part removes s from the named channel. announce runs while s is still a
// member so the departure reaches it too.
func (r *Registry) Part(s *Session, name string, announce func(*Channel)) error {
	ch := r.Channel(name)
	if ch == nil {
		return targetErr(ErrNoSuchChannel, name)
	}
	if !ch.HasMember(s.ID) {
		return targetErr(ErrNotOnChannel, ch.Name)
	}

	if announce != nil {
		announce(ch)
	}
	r.leave(ch, s)
	return nil
}

// Kick removes the member named targetNick on behalf of actor, who must be an
// operator. announce runs before the removal.
func (r *Registry) Kick(actor *Session, name, targetNick string, announce func(*Channel, *Session)) error {
	ch := r.Channel(name)
	if ch == nil {
		return targetErr(ErrNoSuchChannel, name)
	}
	if !ch.HasMember(actor.ID) {
		return targetErr(ErrNotOnChannel, ch.Name)
	}
	if !ch.IsOperator(actor.ID) {
		return targetErr(ErrChanOpPrivsNeeded, ch.Name)
	}

	target := r.SessionByNick(targetNick)
	if target == nil || !ch.HasMember(target.ID) {
		return targetErr(ErrUserNotInChannel, targetNick, ch.Name)
	}

	if announce != nil {
		announce(ch, target)
	}
	r.leave(ch, target)
	return nil
}

// Invite records a standing invite for targetNick to the named channel.
func (r *Registry) Invite(actor *Session, targetNick, name string) (*Session, *Channel, error) {
	target := r.SessionByNick(targetNick)
	if target == nil || !target.registered {
		return nil, nil, targetErr(ErrNoSuchNick, targetNick)
	}
	ch := r.Channel(name)
	if ch == nil {
		return nil, nil, targetErr(ErrNoSuchChannel, name)
	}
	if !ch.HasMember(actor.ID) {
		return nil, nil, targetErr(ErrNotOnChannel, ch.Name)
	}
	if ch.InviteOnly && !ch.IsOperator(actor.ID) {
		return nil, nil, targetErr(ErrChanOpPrivsNeeded, ch.Name)
	}
	if ch.HasMember(target.ID) {
		return nil, nil, targetErr(ErrUserOnChannel, target.Nickname, ch.Name)
	}

	target.invited[foldName(ch.Name)] = struct{}{}
	return target, ch, nil
}

// Topic returns the channel whose topic s wants to read.
func (r *Registry) Topic(s *Session, name string) (*Channel, error) {
	ch := r.Channel(name)
	if ch == nil {
		return nil, targetErr(ErrNoSuchChannel, name)
	}
	if !ch.HasMember(s.ID) {
		return nil, targetErr(ErrNotOnChannel, ch.Name)
	}
	return ch, nil
}

// SetTopic replaces the topic. With +t only operators may do so.
func (r *Registry) SetTopic(s *Session, name, topic string) (*Channel, error) {
	ch, err := r.Topic(s, name)
	if err != nil {
		return nil, err
	}
	if ch.TopicRestricted && !ch.IsOperator(s.ID) {
		return nil, targetErr(ErrChanOpPrivsNeeded, ch.Name)
	}
	ch.Topic = topic
	return ch, nil
}

// ModeChange is the net effect of a MODE request, rendered as e.g. "+ik-l key".
type ModeChange struct {
	Flags string
	Args  []string
}

// Empty reports whether nothing changed.
func (c ModeChange) Empty() bool {
	return c.Flags == ""
}

// Params returns the change as message parameters.
func (c ModeChange) Params() []string {
	return append([]string{c.Flags}, c.Args...)
}

func (c ModeChange) String() string {
	return strings.Join(c.Params(), " ")
}

type modeRecorder struct {
	flags []byte
	args  []string
	sign  byte
}

func (m *modeRecorder) record(adding bool, mode byte, args ...string) {
	sign := byte('-')
	if adding {
		sign = '+'
	}
	if sign != m.sign {
		m.flags = append(m.flags, sign)
		m.sign = sign
	}
	m.flags = append(m.flags, mode)
	m.args = append(m.args, args...)
}

// ApplyModes applies a channel mode string on behalf of actor, who must be an
// operator. Flags are applied left to right; flag-level failures are collected
// and do not stop the remaining flags. Only flags that changed state appear in
// the returned change.
func (r *Registry) ApplyModes(actor *Session, name, flags string, args []string) (*Channel, ModeChange, []error, error) {
	ch := r.Channel(name)
	if ch == nil {
		return nil, ModeChange{}, nil, targetErr(ErrNoSuchChannel, name)
	}
	if !ch.HasMember(actor.ID) {
		return nil, ModeChange{}, nil, targetErr(ErrNotOnChannel, ch.Name)
	}
	if !ch.IsOperator(actor.ID) {
		return nil, ModeChange{}, nil, targetErr(ErrChanOpPrivsNeeded, ch.Name)
	}

	var (
		rec    modeRecorder
		errs   []error
		adding = true
		next   = 0
	)
	nextArg := func() (string, bool) {
		if next >= len(args) {
			return "", false
		}
		next++
		return args[next-1], true
	}

	for i := 0; i < len(flags); i++ {
		mode := flags[i]
		switch mode {
		case '+':
			adding = true
		case '-':
			adding = false

		case CMODE_INVITEONLY:
			if ch.InviteOnly != adding {
				ch.InviteOnly = adding
				rec.record(adding, mode)
			}

		case CMODE_TOPICLIMIT:
			if ch.TopicRestricted != adding {
				ch.TopicRestricted = adding
				rec.record(adding, mode)
			}

		case CMODE_KEY:
			if !adding {
				if _, has := ch.Key(); has {
					ch.clearKey()
					rec.record(false, mode)
				}
				continue
			}
			key, ok := nextArg()
			if !ok {
				errs = append(errs, targetErr(ErrNeedMoreParams, "MODE"))
				continue
			}
			if cur, has := ch.Key(); !has || cur != key {
				ch.setKey(key)
				rec.record(true, mode, key)
			}

		case CMODE_OPERATOR:
			nick, ok := nextArg()
			if !ok {
				errs = append(errs, targetErr(ErrNeedMoreParams, "MODE"))
				continue
			}
			target := r.SessionByNick(nick)
			if target == nil || !ch.HasMember(target.ID) {
				errs = append(errs, targetErr(ErrUserNotInChannel, nick, ch.Name))
				continue
			}
			if ch.IsOperator(target.ID) != adding {
				ch.setOperator(target.ID, adding)
				rec.record(adding, mode, target.Nickname)
			}

		case CMODE_LIMIT:
			if !adding {
				if _, has := ch.Limit(); has {
					ch.clearLimit()
					rec.record(false, mode)
				}
				continue
			}
			arg, ok := nextArg()
			if !ok {
				errs = append(errs, targetErr(ErrNeedMoreParams, "MODE"))
				continue
			}
			n, err := strconv.Atoi(arg)
			if err != nil || ch.setLimit(n) != nil {
				// non-numeric or non-positive limits are ignored
				continue
			}
			rec.record(true, mode, strconv.Itoa(n))

		default:
			errs = append(errs, targetErr(ErrUnknownMode, string(mode)))
		}
	}

	return ch, ModeChange{Flags: string(rec.flags), Args: rec.args}, errs, nil
}

// Names returns the NAMES entries of ch, operators prefixed with '@'.
func (r *Registry) Names(ch *Channel) []string {
	names := make([]string, 0, ch.Len())
	for _, id := range ch.members {
		s := r.sessions[id]
		if s == nil {
			continue
		}
		if ch.IsOperator(id) {
			names = append(names, "@"+s.Nickname)
		} else {
			names = append(names, s.Nickname)
		}
	}
	return names
}

// removeSession drops s from every channel, the nick index and the session table.
func (r *Registry) removeSession(s *Session) {
	for _, folded := range s.Channels() {
		if ch, ok := r.channels[folded]; ok {
			r.leave(ch, s)
		}
	}
	if s.Nickname != placeholderNick {
		if id, ok := r.nicks[foldName(s.Nickname)]; ok && id == s.ID {
			delete(r.nicks, foldName(s.Nickname))
		}
	}
	delete(r.sessions, s.ID)
}
