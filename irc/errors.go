package irc

import (
	"strings"

	"github.com/pkg/errors"
)

// Protocol and authorization failures. Each one maps to exactly one numeric.
var (
	ErrNoSuchNick         = errors.New("no such nick/channel")
	ErrNoSuchChannel      = errors.New("no such channel")
	ErrCannotSendToChan   = errors.New("cannot send to channel")
	ErrNoNicknameGiven    = errors.New("no nickname given")
	ErrErroneousNickname  = errors.New("erroneous nickname")
	ErrNicknameInUse      = errors.New("nickname is already in use")
	ErrUserNotInChannel   = errors.New("they aren't on that channel")
	ErrNotOnChannel       = errors.New("you're not on that channel")
	ErrUserOnChannel      = errors.New("is already on channel")
	ErrNotRegistered      = errors.New("you have not registered")
	ErrNeedMoreParams     = errors.New("not enough parameters")
	ErrAlreadyRegistered  = errors.New("you may not reregister")
	ErrPasswordMismatch   = errors.New("password incorrect")
	ErrPasswordRequired   = errors.New("password required")
	ErrChannelIsFull      = errors.New("cannot join channel (+l)")
	ErrUnknownMode        = errors.New("is unknown mode char to me")
	ErrInviteOnlyChan     = errors.New("cannot join channel (+i)")
	ErrBadChannelKey      = errors.New("cannot join channel (+k)")
	ErrChanOpPrivsNeeded  = errors.New("you're not channel operator")
	ErrUsersDontMatch     = errors.New("cannot change mode for other users")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrNoOrigin           = errors.New("no origin specified")
	ErrNoRecipient        = errors.New("no recipient given")
	ErrNoTextToSend       = errors.New("no text to send")
	ErrSendQExceeded      = errors.New("SendQ exceeded")
	ErrInputLineTooLong   = errors.New("input line too long")
	ErrTransportClosed    = errors.New("transport closed")
	ErrOperatorNotMember  = errors.New("operator must be a channel member")
	ErrNonPositiveLimit   = errors.New("user limit must be positive")
)

// TargetError ties a failure to the protocol parameters it concerns, which are
// echoed back in the numeric reply.
type TargetError struct {
	Err     error
	Targets []string
}

func (e *TargetError) Error() string {
	return strings.Join(e.Targets, " ") + ": " + e.Err.Error()
}

func (e *TargetError) Unwrap() error { return e.Err }

func targetErr(err error, targets ...string) error {
	return &TargetError{Err: err, Targets: targets}
}

// numericReply describes how a failure is rendered on the wire.
type numericReply struct {
	code int
	text string
}

var errorNumerics = map[error]numericReply{
	ErrNoSuchNick:        {ERR_NOSUCHNICK, "No such nick/channel"},
	ErrNoSuchChannel:     {ERR_NOSUCHCHANNEL, "No such channel"},
	ErrCannotSendToChan:  {ERR_CANNOTSENDTOCHAN, "Cannot send to channel"},
	ErrNoNicknameGiven:   {ERR_NONICKNAMEGIVEN, "No nickname given"},
	ErrErroneousNickname: {ERR_ERRONEUSNICKNAME, "Erroneous nickname"},
	ErrNicknameInUse:     {ERR_NICKNAMEINUSE, "Nickname is already in use"},
	ErrUserNotInChannel:  {ERR_USERNOTINCHANNEL, "They aren't on that channel"},
	ErrNotOnChannel:      {ERR_NOTONCHANNEL, "You're not on that channel"},
	ErrUserOnChannel:     {ERR_USERONCHANNEL, "is already on channel"},
	ErrNotRegistered:     {ERR_NOTREGISTERED, "You have not registered"},
	ErrNeedMoreParams:    {ERR_NEEDMOREPARAMS, "Not enough parameters"},
	ErrAlreadyRegistered: {ERR_ALREADYREGISTRED, "You may not reregister"},
	ErrPasswordMismatch:  {ERR_PASSWDMISMATCH, "Password incorrect"},
	ErrPasswordRequired:  {ERR_PASSWDMISMATCH, "Password required"},
	ErrChannelIsFull:     {ERR_CHANNELISFULL, "Cannot join channel (+l)"},
	ErrUnknownMode:       {ERR_UNKNOWNMODE, "is unknown mode char to me"},
	ErrInviteOnlyChan:    {ERR_INVITEONLYCHAN, "Cannot join channel (+i)"},
	ErrBadChannelKey:     {ERR_BADCHANNELKEY, "Cannot join channel (+k)"},
	ErrChanOpPrivsNeeded: {ERR_CHANOPRIVSNEEDED, "You're not channel operator"},
	ErrUsersDontMatch:    {ERR_USERSDONTMATCH, "Cannot change mode for other users"},
	ErrUnknownCommand:    {ERR_UNKNOWNCOMMAND, "Unknown command"},
	ErrNoOrigin:          {ERR_NOORIGIN, "No origin specified"},
	ErrNoRecipient:       {ERR_NORECIPIENT, "No recipient given"},
	ErrNoTextToSend:      {ERR_NOTEXTTOSEND, "No text to send"},
}

// replyFor resolves err to its numeric and the parameters preceding the text.
func replyFor(err error) (numericReply, []string, bool) {
	var targets []string
	var te *TargetError
	if errors.As(err, &te) {
		targets = te.Targets
	}
	for sentinel, reply := range errorNumerics {
		if errors.Is(err, sentinel) {
			return reply, targets, true
		}
	}
	return numericReply{}, nil, false
}
