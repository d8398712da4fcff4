package irc

import (
	"bytes"
	"net"

	"github.com/pkg/errors"
)

// FlushResult is the outcome of one flush attempt.
type FlushResult int

const (
	// FlushComplete means nothing is left to send.
	FlushComplete FlushResult = iota
	// FlushPending means bytes remain queued behind a write in flight.
	FlushPending
	// FlushFailed means the transport can no longer deliver anything.
	FlushFailed
)

func (r FlushResult) String() string {
	switch r {
	case FlushComplete:
		return "complete"
	case FlushPending:
		return "pending"
	default:
		return "failed"
	}
}

// maxWriteChunk bounds how many bytes are handed to the writer at once.
const maxWriteChunk = 64 << 10

// transport is the buffered line framing of one connection. It is owned by the
// event loop; the only thing shared with the writer goroutine is the writes
// channel, which carries private copies of outbound bytes.
type transport struct {
	inbound  []byte
	outbound []byte
	inflight int // bytes handed to the writer and not yet acknowledged
	writes   chan []byte
	maxSendQ int
	maxLine  int
	closed   bool
	draining bool // closed with a write in flight
}

func newTransport(maxSendQ, maxLine int) *transport {
	return &transport{
		writes:   make(chan []byte, 1),
		maxSendQ: maxSendQ,
		maxLine:  maxLine,
	}
}

// appendInbound accumulates received bytes.
func (t *transport) appendInbound(p []byte) error {
	t.inbound = append(t.inbound, p...)
	if t.maxLine > 0 && len(t.inbound) > t.maxLine && bytes.IndexByte(t.inbound, '\n') < 0 {
		return ErrInputLineTooLong
	}
	return nil
}

// nextLine removes and returns the next complete line, without its terminator.
func (t *transport) nextLine() (string, bool) {
	i := bytes.IndexByte(t.inbound, '\n')
	if i < 0 {
		return "", false
	}

	line := t.inbound[:i]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	s := string(line)

	t.inbound = t.inbound[i+1:]
	if len(t.inbound) == 0 {
		t.inbound = nil
	}
	return s, true
}

// enqueueOutbound appends line plus CRLF to the outbound queue. It never blocks.
func (t *transport) enqueueOutbound(line string) error {
	if t.closed {
		return ErrTransportClosed
	}
	if t.maxSendQ > 0 && len(t.outbound)+len(line)+2 > t.maxSendQ {
		return ErrSendQExceeded
	}
	t.outbound = append(t.outbound, line...)
	t.outbound = append(t.outbound, '\r', '\n')
	return nil
}

// pending returns the number of queued bytes, including those in flight.
func (t *transport) pending() int {
	return len(t.outbound)
}

// flushOutbound hands the head of the queue to the writer when it is idle.
func (t *transport) flushOutbound() FlushResult {
	switch {
	case t.closed:
		return FlushFailed
	case t.inflight > 0:
		return FlushPending
	case len(t.outbound) == 0:
		return FlushComplete
	}

	n := min(len(t.outbound), maxWriteChunk)
	chunk := make([]byte, n)
	copy(chunk, t.outbound)

	select {
	case t.writes <- chunk:
		t.inflight = n
	default:
	}
	return FlushPending
}

// completeWrite acknowledges n written bytes. A timeout is a short write, not a
// failure; anything else is fatal for the connection.
func (t *transport) completeWrite(n int, err error) error {
	if n > t.inflight {
		n = t.inflight
	}
	t.outbound = t.outbound[n:]
	if len(t.outbound) == 0 {
		t.outbound = nil
	}
	t.inflight = 0

	if err != nil && !isTimeout(err) {
		return errors.Wrap(err, "write failed")
	}
	return nil
}

// close ends the transport. With no write in flight the writer is handed the
// rest of the queue and told to finish, and close reports true. Otherwise the
// queue is kept until finish learns how much of the in-flight chunk went out,
// and close reports false.
func (t *transport) close() bool {
	if t.closed {
		return !t.draining
	}
	t.closed = true
	t.inbound = nil

	if t.inflight > 0 {
		t.draining = true
		return false
	}
	t.handOver()
	return true
}

// finish acknowledges the last write of a draining transport. The unwritten
// tail and everything queued behind it go to the writer in order; a fatal
// write error drops them.
func (t *transport) finish(n int, err error) {
	if !t.draining {
		return
	}
	t.draining = false

	if werr := t.completeWrite(n, err); werr != nil {
		t.outbound = nil
	}
	t.handOver()
}

// abort ends a draining transport without sending anything more.
func (t *transport) abort() {
	if !t.draining {
		return
	}
	t.draining = false
	t.outbound = nil
	t.handOver()
}

func (t *transport) handOver() {
	if len(t.outbound) > 0 {
		chunk := make([]byte, len(t.outbound))
		copy(chunk, t.outbound)
		select {
		case t.writes <- chunk:
		default:
		}
	}
	close(t.writes)
	t.outbound = nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
