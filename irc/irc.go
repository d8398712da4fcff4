/*
Package irc implements a single-server Internet Relay Chat (IRC) relay
following the client protocol of RFC 2812.

# Features

## Connection and Registration

- Registration sequence PASS, NICK, USER gated by a shared connection password
- The password may be stored as a bcrypt hash
- Case-insensitive, unique nicknames
- PING/PONG keep-alive and an empty CAP negotiation for modern clients

## Channel Operations

- Channels are created on first JOIN, with the creator as operator, and
  removed when the last member leaves
- Channel modes:
  - i (invite-only)
  - t (topic restriction)
  - k (channel key)
  - o (operator)
  - l (user limit)
- TOPIC, INVITE, KICK, NAMES and WHO

## Messaging

- PRIVMSG and NOTICE to channels and nicknames, with comma-separated targets
- NOTICE never produces error replies

# Architecture

One event loop goroutine owns every Session and Channel. Per connection, a
reader goroutine and a writer goroutine perform the blocking socket calls and
report back to the loop as events, so protocol state is never shared between
goroutines and needs no locking.

Outbound data is queued per session. The writer is handed a chunk only while
the queue is non-empty and no write is in flight, and partial writes resume at
the exact byte where they stopped. A queue that outgrows the configured send
queue limit disconnects its session.

Other goroutines inspect state through Server.Do, which runs a function on the
loop.

# Usage

	cfg := config.Default()
	cfg.Server.Password = "secret"

	server, err := irc.NewServer(cfg)
	if err != nil {
	    log.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Run(ctx); err != nil {
	    log.Fatalf("Server failed: %v", err)
	}
*/
package irc
