package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/datalink"
)

// ErrDeliveryStopped is returned by Run when the consumer of the output
// channel went away while records were still being produced.
var ErrDeliveryStopped = errors.New("delivery stopped")

// Device is the radio as seen by the loop.
type Device interface {
	Configure(conf config.RadioConf) error
	Enable() error
	Disable() error
	// Read fills buf completely or fails. io.EOF means the source is exhausted.
	Read(buf []byte, timeout time.Duration) error
	Close() error
}

type Reporter interface {
	Report(frames uint64)
	Done(frames uint64)
}

type Config struct {
	Timeout time.Duration
	// Output receives every record in extraction order. Nil disables
	// delivery; frames are still extracted and counted.
	Output chan<- datalink.Record
	// Capture, if set, receives a copy of every raw burst.
	Capture  io.Writer
	Reporter Reporter
}

type Stats struct {
	Bursts uint64
	Frames uint64
}

type Loop struct {
	dev  Device
	conf Config

	bursts atomic.Uint64
	frames atomic.Uint64
}

// New expects dev to be configured and streaming already.
func New(dev Device, conf Config) *Loop {
	return &Loop{dev: dev, conf: conf}
}

// Run reads and extracts bursts until ctx is cancelled, the source is
// exhausted or something fails. Cancellation is only looked at between
// bursts, so a burst that has been read is always extracted and handed off
// in full. abort is closed when delivery has failed.
//
// Run always closes the output channel and disables and closes the device
// before returning.
func (l *Loop) Run(ctx context.Context, abort <-chan struct{}) (err error) {
	defer func() {
		err = errors.Join(err, l.stop())
	}()

	buf := make([]byte, datalink.BurstSize)
	for {
		select {
		case <-ctx.Done():
			log.Debug("[acquire] Stop requested")
			return nil
		case <-abort:
			return ErrDeliveryStopped
		default:
		}

		if err := l.dev.Read(buf, l.conf.Timeout); err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("Sample source exhausted")
				return nil
			}
			return fmt.Errorf("error reading samples: %w", err)
		}
		l.bursts.Add(1)

		if l.conf.Capture != nil {
			if _, err := l.conf.Capture.Write(buf); err != nil {
				return fmt.Errorf("error writing capture: %w", err)
			}
		}

		if err := l.emit(buf, abort); err != nil {
			return err
		}
	}
}

func (l *Loop) emit(buf []byte, abort <-chan struct{}) error {
	for rec := range datalink.Extract(buf) {
		log.Debugf("[acquire] ADS-B message is: %s", strings.TrimSuffix(string(rec), "\n"))

		if l.conf.Output != nil {
			select {
			case l.conf.Output <- rec:
			case <-abort:
				return ErrDeliveryStopped
			}
		}

		n := l.frames.Add(1)
		if l.conf.Reporter != nil {
			l.conf.Reporter.Report(n)
		}
	}
	return nil
}

func (l *Loop) stop() error {
	if l.conf.Reporter != nil {
		l.conf.Reporter.Done(l.frames.Load())
	}
	if l.conf.Output != nil {
		close(l.conf.Output)
	}

	log.Info("Closing radio device")
	var errs []error
	if err := l.dev.Disable(); err != nil {
		errs = append(errs, fmt.Errorf("could not disable stream: %w", err))
	}
	if err := l.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("could not close device: %w", err))
	}
	return errors.Join(errs...)
}

func (l *Loop) Stats() Stats {
	return Stats{
		Bursts: l.bursts.Load(),
		Frames: l.frames.Load(),
	}
}
