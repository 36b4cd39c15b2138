package acquire

import (
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LogReporter logs the running frame count at most once per interval.
type LogReporter struct {
	every   time.Duration
	last    time.Time
	now     func() time.Time
	printer *message.Printer
}

func NewLogReporter(every time.Duration) *LogReporter {
	return &LogReporter{
		every:   every,
		now:     time.Now,
		printer: message.NewPrinter(language.English),
	}
}

func (r *LogReporter) Report(frames uint64) {
	now := r.now()
	if now.Sub(r.last) < r.every {
		return
	}
	r.last = now
	log.Info(r.printer.Sprintf("Processing message %d", frames))
}

func (r *LogReporter) Done(frames uint64) {
	log.Info(r.printer.Sprintf("Done, %d messages processed", frames))
}
