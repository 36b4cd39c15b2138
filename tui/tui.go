package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/pipeline"
	"github.com/navidys/tvxwidgets"
	"github.com/rivo/tview"
)

const historyLen = 120

func snapshot(p *pipeline.Pipeline) Snapshot {
	a := p.Loop.Stats()
	s := Snapshot{Bursts: a.Bursts, Frames: a.Frames}
	if p.Pipe != nil {
		d := p.Pipe.Stats()
		s.Remote = true
		s.Delivered = d.Records
		s.Bytes = d.Bytes
		s.ShortWrites = d.ShortWrites
		s.QueueLen, s.QueueCap = p.QueueDepth()
	}
	return s
}

var LogOut *tview.TextView

// StartUI shows the receiver status until ctx is done or the user quits,
// in which case stop is called. It blocks while the UI is up.
func StartUI(ctx context.Context, p *pipeline.Pipeline, radio config.RadioConf, remote string, tuiConf config.TuiConf, stop func()) error {
	app := tview.NewApplication()

	LogOut = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	tunables := &TunablesTableData{radio: radio, remote: remote}
	counters := &CountersTableData{}
	tunablesTable := tview.NewTable().SetContent(tunables)
	countersTable := tview.NewTable().SetContent(counters)

	ratePlot := tvxwidgets.NewPlot()
	ratePlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue})
	ratePlot.SetMarker(tvxwidgets.PlotMarkerBraille)

	queueGauge := tvxwidgets.NewUtilModeGauge()
	queueGauge.SetLabel("Handoff queue:  ")
	queueGauge.SetLabelColor(tcell.ColorLightSkyBlue)
	queueGauge.SetWarnPercentage(50)
	queueGauge.SetCritPercentage(90)
	queueGauge.SetEmptyColor(tcell.ColorBlack)
	queueGauge.SetBorder(false)

	LogOut.SetChangedFunc(func() {
		LogOut.ScrollToEnd()
		app.Draw()
	})
	LogOut.SetBorder(true).SetTitle("Log Output")
	log.SetOutput(tview.ANSIWriter(LogOut))
	defer log.SetOutput(os.Stderr)

	tunablesTable.SetSelectable(false, false).SetBorder(true).SetTitle("Radio")
	countersTable.SetSelectable(false, false).SetBorder(true).SetTitle("Frames")
	ratePlot.SetBorder(true)
	ratePlot.SetTitle("Frames/sec")

	leftCol := tview.NewFlex().SetDirection(tview.FlexRow)
	leftCol.AddItem(tunablesTable, 0, 1, false)
	leftCol.AddItem(countersTable, 0, 1, false)
	leftCol.AddItem(queueGauge, 1, 0, false)

	rightCol := tview.NewFlex().SetDirection(tview.FlexRow)
	rightCol.AddItem(ratePlot, 0, 2, false)
	rightCol.AddItem(LogOut, 0, 3, false)

	page := tview.NewFlex().SetDirection(tview.FlexColumn)
	page.AddItem(leftCol, 0, 2, false)
	page.AddItem(rightCol, 0, 5, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return ev
	})

	//Update Stats
	go func() {
		history := newRateHistory(historyLen)
		ticker := time.NewTicker(tuiConf.Refresh)
		defer ticker.Stop()
		var lastFrames uint64
		lastTick := time.Now()

		for {
			select {
			case <-ctx.Done():
				// Queued so a stop that races app startup is not lost.
				app.QueueUpdate(app.Stop)
				return
			case now := <-ticker.C:
				s := snapshot(p)
				rate := float64(s.Frames-lastFrames) / now.Sub(lastTick).Seconds()
				lastFrames, lastTick = s.Frames, now
				history.push(rate)
				mean, stdev := history.summary()
				data := append([]float64(nil), history.samples...)

				app.QueueUpdateDraw(func() {
					counters.snap = s
					counters.rate = rate
					counters.mean, counters.stdev = mean, stdev
					queueGauge.SetValue(queuePercent(s))
					if len(data) > 1 {
						ratePlot.SetData([][]float64{data})
					}
				})
			}
		}
	}()

	if err := app.SetRoot(page, true).EnableMouse(true).Run(); err != nil {
		return fmt.Errorf("could not start UI: %w", err)
	}
	stop()
	return nil
}
