package deliver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/datalink"
)

type flusher interface {
	Flush() error
}

type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

type Stats struct {
	Records     uint64
	Bytes       uint64
	ShortWrites uint64
}

// Pipe writes records to a single long lived connection, one record per
// write, in the order they are handed to it.
type Pipe struct {
	w            io.Writer
	name         string
	writeTimeout time.Duration

	records     atomic.Uint64
	bytes       atomic.Uint64
	shortWrites atomic.Uint64
}

// Dial opens the connection to the downstream decoder.
func Dial(ctx context.Context, conf config.RemoteConf) (net.Conn, error) {
	d := net.Dialer{Timeout: conf.DialTimeout}
	log.Infof("Connecting to %s", conf.Addr())
	conn, err := d.DialContext(ctx, "tcp", conf.Addr())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", conf.Addr(), err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		// Records are tiny, get each one on the wire immediately.
		tcp.SetNoDelay(true)
	}
	return conn, nil
}

func New(w io.Writer, conf config.RemoteConf) *Pipe {
	name := "server"
	if c, ok := w.(net.Conn); ok {
		name = c.RemoteAddr().String()
	}
	return &Pipe{
		w:            w,
		name:         name,
		writeTimeout: conf.WriteTimeout,
	}
}

// Deliver sends one record. A short write is logged and counted but is not an
// error; the rest of the record is not resent. Any other failure is fatal for
// the pipe.
func (p *Pipe) Deliver(rec datalink.Record) (int, error) {
	if d, ok := p.w.(deadliner); ok && p.writeTimeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return 0, fmt.Errorf("setting write deadline for %s: %w", p.name, err)
		}
	}

	n, err := io.WriteString(p.w, string(rec))
	if err != nil && !errors.Is(err, io.ErrShortWrite) {
		return n, fmt.Errorf("error sending record to %s: %w", p.name, err)
	}
	p.bytes.Add(uint64(n))

	log.Debugf("[deliver] Sent %d/%d bytes (%q) to %s", n, len(rec), strings.TrimSuffix(string(rec), "\n"), p.name)
	if n < len(rec) {
		p.shortWrites.Add(1)
		log.Warnf("Sent %d/%d bytes to %s", n, len(rec), p.name)
	} else {
		p.records.Add(1)
	}

	if f, ok := p.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return n, fmt.Errorf("error flushing stream to %s: %w", p.name, err)
		}
	}
	return n, nil
}

// Run delivers everything received on in until it is closed.
func (p *Pipe) Run(in <-chan datalink.Record) error {
	for rec := range in {
		if _, err := p.Deliver(rec); err != nil {
			return err
		}
	}
	log.Debugf("[deliver] Handoff closed after %d records", p.records.Load())
	return nil
}

func (p *Pipe) Stats() Stats {
	return Stats{
		Records:     p.records.Load(),
		Bytes:       p.bytes.Load(),
		ShortWrites: p.shortWrites.Load(),
	}
}
