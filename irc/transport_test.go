package irc

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestNextLine(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.appendInbound([]byte("NICK alice\r\nUSER a 0 * :A\nPI")))

	line, ok := tr.nextLine()
	assert.True(t, ok)
	assert.Equal(t, "NICK alice", line)

	line, ok = tr.nextLine()
	assert.True(t, ok)
	assert.Equal(t, "USER a 0 * :A", line)

	_, ok = tr.nextLine()
	assert.False(t, ok)

	require.NoError(t, tr.appendInbound([]byte("NG x\r\n")))
	line, ok = tr.nextLine()
	assert.True(t, ok)
	assert.Equal(t, "PING x", line)

	_, ok = tr.nextLine()
	assert.False(t, ok)
}

func TestNextLineEmptyLines(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.appendInbound([]byte("\r\n\n")))

	line, ok := tr.nextLine()
	assert.True(t, ok)
	assert.Empty(t, line)
	line, ok = tr.nextLine()
	assert.True(t, ok)
	assert.Empty(t, line)
}

func TestInboundLineLimit(t *testing.T) {
	tr := newTransport(0, 16)
	assert.NoError(t, tr.appendInbound([]byte("0123456789")))
	assert.ErrorIs(t, tr.appendInbound([]byte("0123456789")), ErrInputLineTooLong)

	tr = newTransport(0, 16)
	assert.NoError(t, tr.appendInbound([]byte("0123456789\r\n0123456789")))
}

func TestFlushHandsOverOneChunk(t *testing.T) {
	tr := newTransport(0, 0)
	assert.Equal(t, FlushComplete, tr.flushOutbound())

	require.NoError(t, tr.enqueueOutbound("PING a"))
	require.NoError(t, tr.enqueueOutbound("PING b"))
	assert.Equal(t, FlushPending, tr.flushOutbound())

	chunk := <-tr.writes
	assert.Equal(t, "PING a\r\nPING b\r\n", string(chunk))

	// nothing new is handed over while a write is in flight
	require.NoError(t, tr.enqueueOutbound("PING c"))
	assert.Equal(t, FlushPending, tr.flushOutbound())
	assert.Len(t, tr.writes, 0)

	require.NoError(t, tr.completeWrite(len(chunk), nil))
	assert.Equal(t, FlushPending, tr.flushOutbound())
	assert.Equal(t, "PING c\r\n", string(<-tr.writes))

	require.NoError(t, tr.completeWrite(8, nil))
	assert.Equal(t, 0, tr.pending())
	assert.Equal(t, FlushComplete, tr.flushOutbound())
}

func TestPartialWriteResumes(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.enqueueOutbound("PRIVMSG #a :hello"))
	assert.Equal(t, FlushPending, tr.flushOutbound())
	<-tr.writes

	// a timed out write that got 5 bytes out is a short write
	require.NoError(t, tr.completeWrite(5, timeoutError{}))
	assert.Equal(t, FlushPending, tr.flushOutbound())
	assert.Equal(t, "SG #a :hello\r\n", string(<-tr.writes))
}

func TestWriteFailure(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.enqueueOutbound("PING a"))
	tr.flushOutbound()
	<-tr.writes

	err := tr.completeWrite(0, io.ErrClosedPipe)
	assert.Error(t, err)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestSendQLimit(t *testing.T) {
	tr := newTransport(20, 0)
	require.NoError(t, tr.enqueueOutbound("0123456789"))
	assert.ErrorIs(t, tr.enqueueOutbound("0123456789"), ErrSendQExceeded)
	assert.Equal(t, 12, tr.pending())
}

func TestLargeQueueIsChunked(t *testing.T) {
	tr := newTransport(0, 0)
	line := strings.Repeat("x", 1022)
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.enqueueOutbound(line))
	}

	tr.flushOutbound()
	chunk := <-tr.writes
	assert.Len(t, chunk, maxWriteChunk)
	require.NoError(t, tr.completeWrite(len(chunk), nil))

	tr.flushOutbound()
	chunk = <-tr.writes
	assert.Len(t, chunk, 100*1024-maxWriteChunk)
}

func TestCloseHandsOverRemainder(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.enqueueOutbound("ERROR :bye"))
	tr.close()

	select {
	case chunk := <-tr.writes:
		assert.Equal(t, "ERROR :bye\r\n", string(chunk))
	case <-time.After(time.Second):
		t.Fatal("remainder not handed to writer")
	}
	_, open := <-tr.writes
	assert.False(t, open)

	assert.ErrorIs(t, tr.enqueueOutbound("late"), ErrTransportClosed)
	assert.Equal(t, FlushFailed, tr.flushOutbound())

	// closing twice is harmless
	tr.close()
}

func collect(tr *transport) []string {
	var got []string
	for chunk := range tr.writes {
		got = append(got, string(chunk))
	}
	return got
}

func TestCloseWaitsForWriteInFlight(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.enqueueOutbound("PRIVMSG #a :hello"))
	assert.Equal(t, FlushPending, tr.flushOutbound())
	assert.Equal(t, "PRIVMSG #a :hello\r\n", string(<-tr.writes))
	require.NoError(t, tr.enqueueOutbound("ERROR :bye"))

	assert.False(t, tr.close())
	assert.Len(t, tr.writes, 0)

	// the deadline cut the in-flight write short after 5 bytes
	tr.finish(5, timeoutError{})
	assert.Equal(t, []string{"SG #a :hello\r\nERROR :bye\r\n"}, collect(tr))
	assert.True(t, tr.close())
}

func TestCloseAfterFailedWriteDropsQueue(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.enqueueOutbound("PING a"))
	tr.flushOutbound()
	<-tr.writes
	require.NoError(t, tr.enqueueOutbound("ERROR :bye"))

	assert.False(t, tr.close())
	tr.finish(0, io.ErrClosedPipe)
	assert.Empty(t, collect(tr))
}

func TestAbortDrainingTransport(t *testing.T) {
	tr := newTransport(0, 0)
	require.NoError(t, tr.enqueueOutbound("PING a"))
	tr.flushOutbound()
	<-tr.writes

	assert.False(t, tr.close())
	tr.abort()
	assert.Empty(t, collect(tr))

	// late completions are ignored
	tr.finish(6, nil)
	tr.abort()
}
