package sink

import (
	"bytes"
	"context"
	"net"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/datalink"
	"github.com/jrwynneiii/adsbtuner/deliver"
	"github.com/jrwynneiii/adsbtuner/pipeline"
	"github.com/jrwynneiii/adsbtuner/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	frames []datalink.Frame
}

func (c *collector) handle(_ string, f datalink.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func serve(t *testing.T, c *collector) (config.RemoteConf, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, c.handle) }()

	conf := config.RemoteConf{
		Enabled:     true,
		IP:          "127.0.0.1",
		Port:        uint16(ln.Addr().(*net.TCPAddr).Port),
		DialTimeout: time.Second,
	}
	return conf, cancel, done
}

func TestMalformedLinesSkipped(t *testing.T) {
	c := &collector{}
	conf, cancel, done := serve(t, c)

	conn, err := net.Dial("tcp", conf.Addr())
	require.NoError(t, err)
	_, err = conn.Write([]byte("*8d4ca21b581b32;\ngarbage\n*8d4c;\n*5d4ca21b581b32;\n"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool { return c.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []datalink.Frame{
		{0x8d, 0x4c, 0xa2, 0x1b, 0x58, 0x1b, 0x32},
		{0x5d, 0x4c, 0xa2, 0x1b, 0x58, 0x1b, 0x32},
	}, c.frames)
}

// Replayed bursts travel the whole receive path and arrive intact and in
// order at the listener.
func TestEndToEnd(t *testing.T) {
	c := &collector{}
	remote, cancel, done := serve(t, c)
	defer cancel()

	var capture []byte
	var want []datalink.Frame
	for b := 0; b < 4; b++ {
		burst := make([]byte, datalink.BurstSize)
		for slot := 0; slot < 256; slot += 3 {
			off := slot * datalink.SlotWidth
			burst[off] = 0x01
			burst[off+2] = byte(slot) | byte(b<<7)
			burst[off+3] = byte(b)
		}
		for _, f := range datalink.Scan(burst) {
			want = append(want, bytes.Clone(f))
		}
		capture = append(capture, burst...)
	}

	conn, err := deliver.Dial(context.Background(), remote)
	require.NoError(t, err)
	defer conn.Close()

	conf := config.Conf{
		Radio:  config.RadioConf{Timeout: time.Second},
		Remote: remote,
		Stream: config.StreamConf{QueueSize: 4},
	}
	p := pipeline.New(replay.New(bytes.NewReader(capture)), conn, conf, pipeline.Options{})
	require.NoError(t, p.Run(context.Background()))

	require.Eventually(t, func() bool { return c.count() == len(want) }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, slices.EqualFunc(want, c.frames, bytes.Equal))
}

func TestServeStopsOnCancel(t *testing.T) {
	_, cancel, done := serve(t, &collector{})
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
