package replay

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrwynneiii/adsbtuner/acquire"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/datalink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ acquire.Device = (*Source)(nil)

func TestReadBursts(t *testing.T) {
	data := make([]byte, datalink.BurstSize+10)
	for i := range data {
		data[i] = byte(i)
	}
	s := New(bytes.NewReader(data))
	buf := make([]byte, datalink.BurstSize)

	require.NoError(t, s.Read(buf, time.Second))
	assert.Equal(t, data[:datalink.BurstSize], buf)

	require.NoError(t, s.Read(buf, time.Second))
	assert.Equal(t, data[datalink.BurstSize:], buf[:10])
	assert.Equal(t, make([]byte, datalink.BurstSize-10), buf[10:], "tail is zero padded")

	assert.ErrorIs(t, s.Read(buf, time.Second), io.EOF)
}

func TestEmptyReader(t *testing.T) {
	s := New(bytes.NewReader(nil))
	assert.ErrorIs(t, s.Read(make([]byte, datalink.BurstSize), time.Second), io.EOF)
}

// Replayed bursts run through the loop like radio bursts.
func TestCaptureReplayRoundTrip(t *testing.T) {
	burst := make([]byte, datalink.BurstSize)
	burst[0] = 0x01
	burst[2] = 0x8d
	burst[32] = 0x01
	burst[34] = 0x5d

	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, append(bytes.Clone(burst), burst...), 0o644))

	src, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, src.Configure(config.RadioConf{}))

	out := make(chan datalink.Record, 8)
	l := acquire.New(src, acquire.Config{Timeout: time.Second, Output: out})
	require.NoError(t, l.Run(context.Background(), nil))

	var got []datalink.Record
	for r := range out {
		got = append(got, r)
	}
	require.Len(t, got, 4)
	assert.Equal(t, got[0], got[2])
	assert.Equal(t, got[1], got[3])
	assert.Equal(t, datalink.Record("*8d"+strings.Repeat("00", 13)+";\n"), got[0])
	assert.Equal(t, datalink.Record("*5d000000000000;\n"), got[1])
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
