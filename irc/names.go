package irc

import "strings"

// Placeholder nickname of a session that has not chosen one yet.
const placeholderNick = "*"

// foldName case-folds a nickname or channel name for lookups. Only ASCII
// letters fold, matching the advertised CASEMAPPING=ascii.
func foldName(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, name)
}

// isChannelName reports whether target addresses a channel rather than a nick.
func isChannelName(target string) bool {
	return target != "" && (target[0] == '#' || target[0] == '&')
}

// isValidNickname checks if a nickname is valid
func isValidNickname(nick string, maxLen int) bool {
	if len(nick) < 1 || len(nick) > maxLen {
		return false
	}

	for i := 0; i < len(nick); i++ {
		ch := nick[i]
		letter := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
		special := strings.IndexByte("[]\\`_^{|}", ch) >= 0

		// First character must be a letter or special
		if i == 0 {
			if !letter && !special {
				return false
			}
			continue
		}

		if !letter && !special && !(ch >= '0' && ch <= '9') && ch != '-' {
			return false
		}
	}

	return true
}

// isValidChannelName checks if a channel name is valid
func isValidChannelName(name string, maxLen int) bool {
	if len(name) < 2 || len(name) > maxLen {
		return false
	}

	// Must start with # or &
	if !isChannelName(name) {
		return false
	}

	// Can't contain spaces, ASCII 7 (bell), commas, colons, or NULL bytes
	return !strings.ContainsAny(name, " ,:\x00\x07\r\n")
}
