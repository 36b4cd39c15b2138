package deliver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/datalink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockConn accepts writes according to a script of per-call byte limits.
type MockConn struct {
	written   bytes.Buffer
	limits    []int
	writeErr  error
	flushes   int
	flushErr  error
	deadlines int
	calls     int
}

func (m *MockConn) Write(p []byte) (int, error) {
	m.calls++
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	n := len(p)
	if len(m.limits) > 0 {
		n = min(n, m.limits[0])
		m.limits = m.limits[1:]
	}
	m.written.Write(p[:n])
	return n, nil
}

func (m *MockConn) Flush() error {
	m.flushes++
	return m.flushErr
}

func (m *MockConn) SetWriteDeadline(time.Time) error {
	m.deadlines++
	return nil
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func records(recs ...datalink.Record) <-chan datalink.Record {
	ch := make(chan datalink.Record, len(recs))
	for _, r := range recs {
		ch <- r
	}
	close(ch)
	return ch
}

const (
	short = datalink.Record("*8d4ca21b581b32;\n")
	long  = datalink.Record("*8d4ca21b581b328d4ca21b581b32;\n")
)

func TestDeliverWritesAndFlushes(t *testing.T) {
	conn := &MockConn{}
	p := New(conn, config.RemoteConf{})

	n, err := p.Deliver(short)
	require.NoError(t, err)
	assert.Equal(t, len(short), n)
	assert.Equal(t, string(short), conn.written.String())
	assert.Equal(t, 1, conn.flushes)
	assert.Equal(t, 0, conn.deadlines)
	assert.Equal(t, Stats{Records: 1, Bytes: uint64(len(short))}, p.Stats())
}

func TestShortWriteWarnsAndContinues(t *testing.T) {
	logs := captureLog(t)
	conn := &MockConn{limits: []int{3}}
	p := New(conn, config.RemoteConf{})

	require.NoError(t, p.Run(records(short, long)))

	assert.Contains(t, logs.String(), fmt.Sprintf("Sent 3/%d bytes", len(short)))
	assert.Equal(t, "*8d"+string(long), conn.written.String())
	assert.Equal(t, 2, conn.calls, "short write is not retried")
	assert.Equal(t, Stats{Records: 1, Bytes: uint64(3 + len(long)), ShortWrites: 1}, p.Stats())
}

type shortWriter struct{ bytes.Buffer }

func (s *shortWriter) Write(p []byte) (int, error) {
	s.Buffer.Write(p[:1])
	return 1, io.ErrShortWrite
}

func TestShortWriteErrorIsNotFatal(t *testing.T) {
	captureLog(t)
	w := &shortWriter{}
	p := New(w, config.RemoteConf{})

	n, err := p.Deliver(short)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), p.Stats().ShortWrites)
}

func TestWriteErrorIsFatal(t *testing.T) {
	conn := &MockConn{writeErr: syscall.EPIPE}
	p := New(conn, config.RemoteConf{})

	in := make(chan datalink.Record, 3)
	in <- short
	in <- long
	in <- short
	close(in)

	err := p.Run(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EPIPE)
	assert.Len(t, in, 2, "pipe stops consuming after a fatal error")
	assert.Equal(t, uint64(0), p.Stats().Records)
}

func TestFlushErrorIsFatal(t *testing.T) {
	flushErr := errors.New("flush failed")
	p := New(&MockConn{flushErr: flushErr}, config.RemoteConf{})
	_, err := p.Deliver(short)
	assert.ErrorIs(t, err, flushErr)
}

func TestWriteDeadline(t *testing.T) {
	conn := &MockConn{}
	p := New(conn, config.RemoteConf{WriteTimeout: time.Second})
	require.NoError(t, p.Run(records(short, long)))
	assert.Equal(t, 2, conn.deadlines)
}

func listen(t *testing.T) (net.Listener, config.RemoteConf) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)
	return ln, config.RemoteConf{IP: "127.0.0.1", Port: uint16(addr.Port), DialTimeout: time.Second}
}

func TestOrderOverTCP(t *testing.T) {
	ln, conf := listen(t)

	const count = 2000
	got := make(chan []string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			got <- nil
			return
		}
		defer c.Close()
		var lines []string
		s := bufio.NewScanner(c)
		for s.Scan() {
			lines = append(lines, s.Text())
		}
		got <- lines
	}()

	conn, err := Dial(context.Background(), conf)
	require.NoError(t, err)
	p := New(conn, conf)

	in := make(chan datalink.Record, 16)
	var want []string
	go func() {
		for i := 0; i < count; i++ {
			f := make(datalink.Frame, datalink.ShortFrameLen)
			copy(f, strconv.AppendInt(nil, int64(i), 10))
			in <- datalink.Render(f)
		}
		close(in)
	}()
	for i := 0; i < count; i++ {
		f := make(datalink.Frame, datalink.ShortFrameLen)
		copy(f, strconv.AppendInt(nil, int64(i), 10))
		r := string(datalink.Render(f))
		want = append(want, r[:len(r)-1])
	}

	require.NoError(t, p.Run(in))
	require.NoError(t, conn.Close())

	if diff := cmp.Diff(want, <-got); diff != "" {
		t.Errorf("records out of order (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(count), p.Stats().Records)
}

func TestDialFailure(t *testing.T) {
	ln, conf := listen(t)
	ln.Close()

	_, err := Dial(context.Background(), conf)
	assert.Error(t, err)
}
