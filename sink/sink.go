// Package sink is the receiving end of the record stream, for checking a
// receiver without running a full decoder.
package sink

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/datalink"
)

type Handler func(remote string, f datalink.Frame)

// Serve accepts connections on ln until ctx is done and hands every well
// formed frame to handle. Malformed lines are logged and skipped. handle may
// be called from several goroutines at once, one per connection.
func Serve(ctx context.Context, ln net.Listener, handle Handler) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	conns := map[net.Conn]struct{}{}
	closed := false

	go func() {
		<-ctx.Done()
		ln.Close()
		mu.Lock()
		closed = true
		for c := range conns {
			c.Close()
		}
		mu.Unlock()
	}()

	log.Infof("Listening for records on %s", ln.Addr())
	for {
		c, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		mu.Lock()
		if closed {
			c.Close()
		}
		conns[c] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, c)
				mu.Unlock()
				c.Close()
			}()
			if err := read(c, handle); err != nil && !errors.Is(err, net.ErrClosed) {
				log.Warnf("Connection from %s failed: %v", c.RemoteAddr(), err)
			}
		}()
	}
}

func read(c net.Conn, handle Handler) error {
	remote := c.RemoteAddr().String()
	log.Infof("Accepted connection from %s", remote)
	defer log.Infof("Connection from %s closed", remote)

	s := bufio.NewScanner(c)
	for s.Scan() {
		f, err := datalink.ParseRecord(s.Text())
		if err != nil {
			log.Warnf("Dropping line from %s: %v", remote, err)
			continue
		}
		handle(remote, f)
	}
	return s.Err()
}

// LogFrame is a Handler that logs each frame.
func LogFrame(remote string, f datalink.Frame) {
	log.Info("frame", "from", remote, "len", len(f), "hex", hex.EncodeToString(f))
}
