// Package replay plays back bursts recorded with --capture as if they came
// from the radio.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/config"
)

type Source struct {
	r      io.Reader
	closer io.Closer
	name   string
	done   bool
}

func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open replay file: %w", err)
	}
	return &Source{r: f, closer: f, name: path}, nil
}

func New(r io.Reader) *Source {
	return &Source{r: r, name: "reader"}
}

func (s *Source) Configure(conf config.RadioConf) error {
	log.Infof("Replaying samples from %s, radio settings ignored", s.name)
	log.Debugf("[replay] Ignoring radio definition: %##v", conf)
	return nil
}

func (s *Source) Enable() error  { return nil }
func (s *Source) Disable() error { return nil }

// Read fills buf with the next burst. A short final burst is zero padded,
// after which Read returns io.EOF.
func (s *Source) Read(buf []byte, _ time.Duration) error {
	if s.done {
		return io.EOF
	}
	n, err := io.ReadFull(s.r, buf)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		clear(buf[n:])
		s.done = true
		return nil
	case err != nil:
		return err
	}
	return nil
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
