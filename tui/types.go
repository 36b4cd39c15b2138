package tui

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/rivo/tview"
	"gonum.org/v1/gonum/stat"
)

// Snapshot is one sample of the pipeline counters.
type Snapshot struct {
	Bursts      uint64
	Frames      uint64
	Delivered   uint64
	Bytes       uint64
	ShortWrites uint64
	QueueLen    int
	QueueCap    int
	Remote      bool
}

type TunablesTableData struct {
	tview.TableContentReadOnly
	radio  config.RadioConf
	remote string
}

type CountersTableData struct {
	tview.TableContentReadOnly
	snap  Snapshot
	rate  float64
	mean  float64
	stdev float64
}

func (t *TunablesTableData) rows() [][2]string {
	return [][2]string{
		{"Driver:", t.radio.Driver},
		{"Frequency:", fmt.Sprintf("%.1f MHz", float64(t.radio.Frequency)/1e6)},
		{"Sample rate:", fmt.Sprintf("%.1f MHz", float64(t.radio.SampleRate)/1e6)},
		{"Bandwidth:", fmt.Sprintf("%.1f MHz", float64(t.radio.Bandwidth)/1e6)},
		{"Gain mode:", string(t.radio.GainMode)},
		{"Gain:", fmt.Sprintf("%ddB", t.radio.Gain)},
		{"Bias tee:", fmt.Sprintf("%v", t.radio.BiasTee)},
		{"Remote:", t.remote},
	}
}

func (t *TunablesTableData) GetRowCount() int {
	return len(t.rows())
}

func (t *TunablesTableData) GetColumnCount() int {
	return 2
}

func (t *TunablesTableData) GetCell(row, column int) *tview.TableCell {
	rows := t.rows()
	if row < 0 || row >= len(rows) || column < 0 || column > 1 {
		return tview.NewTableCell("ERROR")
	}
	if column == 0 {
		return tview.NewTableCell("[lightskyblue]" + rows[row][0])
	}
	return tview.NewTableCell("[white]" + rows[row][1])
}

func (c *CountersTableData) GetRowCount() int {
	return 8
}

func (c *CountersTableData) GetColumnCount() int {
	return 2
}

func (c *CountersTableData) GetCell(row, column int) *tview.TableCell {
	labels := []string{
		"Bursts read:",
		"Frames extracted:",
		"Frames/sec:",
		"Frames/sec (mean ± sd):",
		"Records delivered:",
		"Bytes sent:",
		"Short writes:",
		"Queue depth:",
	}
	if row < 0 || row >= len(labels) {
		return tview.NewTableCell("ERROR")
	}
	if column == 0 {
		return tview.NewTableCell(labels[row])
	}

	s := c.snap
	switch row {
	case 0:
		return tview.NewTableCell(fmt.Sprintf("%d", s.Bursts))
	case 1:
		return tview.NewTableCell(fmt.Sprintf("%d", s.Frames))
	case 2:
		return tview.NewTableCell(fmt.Sprintf("%.1f", c.rate))
	case 3:
		return tview.NewTableCell(fmt.Sprintf("%.1f ± %.1f", c.mean, c.stdev))
	}
	if !s.Remote {
		return tview.NewTableCell("disabled").SetTextColor(tcell.ColorGray)
	}
	switch row {
	case 4:
		return tview.NewTableCell(fmt.Sprintf("%d", s.Delivered))
	case 5:
		return tview.NewTableCell(fmt.Sprintf("%d", s.Bytes))
	case 6:
		color := tcell.ColorGreen
		if s.ShortWrites > 0 {
			color = tcell.ColorRed
		}
		return tview.NewTableCell(fmt.Sprintf("%d", s.ShortWrites)).SetTextColor(color)
	default:
		return tview.NewTableCell(fmt.Sprintf("%d/%d", s.QueueLen, s.QueueCap))
	}
}

// rateHistory keeps the last n frames/sec samples for the plot.
type rateHistory struct {
	samples []float64
	n       int
}

func newRateHistory(n int) *rateHistory {
	return &rateHistory{n: n}
}

func (h *rateHistory) push(v float64) {
	h.samples = append(h.samples, v)
	if len(h.samples) > h.n {
		h.samples = h.samples[len(h.samples)-h.n:]
	}
}

func (h *rateHistory) summary() (mean, stdev float64) {
	switch len(h.samples) {
	case 0:
		return 0, 0
	case 1:
		return h.samples[0], 0
	}
	mean, stdev = stat.MeanStdDev(h.samples, nil)
	if math.IsNaN(stdev) {
		stdev = 0
	}
	return mean, stdev
}

func queuePercent(s Snapshot) float64 {
	if s.QueueCap == 0 {
		return 0
	}
	return 100 * float64(s.QueueLen) / float64(s.QueueCap)
}
