package pipeline

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/acquire"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/datalink"
	"github.com/jrwynneiii/adsbtuner/deliver"
	"golang.org/x/sync/errgroup"
)

// Pipeline runs acquisition and delivery as two tasks joined by a bounded
// FIFO. The producer blocks when the FIFO is full; nothing is dropped.
type Pipeline struct {
	Loop  *acquire.Loop
	Pipe  *deliver.Pipe
	queue chan datalink.Record
}

type Options struct {
	Capture  io.Writer
	Reporter acquire.Reporter
}

// New builds the pipeline. With remote delivery disabled, or w nil, frames
// are extracted and counted but go nowhere.
func New(dev acquire.Device, w io.Writer, conf config.Conf, opts Options) *Pipeline {
	p := &Pipeline{}
	lconf := acquire.Config{
		Timeout:  conf.Radio.Timeout,
		Capture:  opts.Capture,
		Reporter: opts.Reporter,
	}
	if conf.Remote.Enabled && w != nil {
		p.queue = make(chan datalink.Record, conf.Stream.QueueSize)
		p.Pipe = deliver.New(w, conf.Remote)
		lconf.Output = p.queue
	}
	p.Loop = acquire.New(dev, lconf)
	return p
}

// Run blocks until acquisition stops and every queued record has been
// delivered, or until either side fails. Cancelling ctx stops acquisition at
// the next burst boundary.
func (p *Pipeline) Run(ctx context.Context) error {
	// gctx ends on a task failure only. A stop request drains the queue.
	g, gctx := errgroup.WithContext(context.Background())
	if p.Pipe != nil {
		g.Go(func() error {
			return p.Pipe.Run(p.queue)
		})
	}
	g.Go(func() error {
		return p.Loop.Run(ctx, gctx.Done())
	})
	err := g.Wait()

	s := p.Loop.Stats()
	log.Infof("Read %d bursts, extracted %d frames", s.Bursts, s.Frames)
	if p.Pipe != nil {
		d := p.Pipe.Stats()
		log.Infof("Delivered %d records (%d bytes), %d short writes", d.Records, d.Bytes, d.ShortWrites)
	}
	return err
}

// QueueDepth reports how full the handoff FIFO is.
func (p *Pipeline) QueueDepth() (int, int) {
	return len(p.queue), cap(p.queue)
}
