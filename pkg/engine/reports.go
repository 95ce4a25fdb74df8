package engine

import (
	"time"

	"github.com/dbehnke/bts-codec/pkg/database"
	"github.com/dbehnke/bts-codec/pkg/logger"
	"github.com/dbehnke/bts-codec/pkg/publish"
)

// reportBuffer is the depth of the history and MQTT queue. Reports beyond
// it are dropped and counted.
const reportBuffer = 256

type pendingReport struct {
	result DecodeResult
	at     time.Time
}

func (e *Engine) startReporter() {
	e.reports = make(chan pendingReport, reportBuffer)
	e.reportWG.Add(1)
	go e.runReporter()
}

func (e *Engine) runReporter() {
	defer e.reportWG.Done()
	for r := range e.reports {
		e.deliver(r)
	}
}

// enqueueReport hands a decode to the reporter without blocking.
func (e *Engine) enqueueReport(r pendingReport) {
	e.reportMu.RLock()
	defer e.reportMu.RUnlock()
	if e.reports == nil {
		return
	}
	if e.reportsClose {
		e.counters.droppedReports.Add(1)
		return
	}
	select {
	case e.reports <- r:
	default:
		if e.counters.droppedReports.Add(1) == 1 {
			e.logger.Warn("Report queue full, dropping decode reports",
				logger.Int("buffer", reportBuffer))
		}
	}
}

// stopReporter closes the queue and waits for the queued reports to be
// written.
func (e *Engine) stopReporter() {
	e.reportMu.Lock()
	if e.reports == nil || e.reportsClose {
		e.reportMu.Unlock()
		return
	}
	e.reportsClose = true
	close(e.reports)
	e.reportMu.Unlock()

	e.reportWG.Wait()
}

func (e *Engine) deliver(r pendingReport) {
	res := &r.result
	if e.history != nil {
		rec := &database.DecodeRecord{
			RequestID:  res.ID,
			Channel:    string(res.Channel),
			Scheme:     res.Scheme.String(),
			OK:         res.OK(),
			Error:      truncate(res.Error, 200),
			FACCH:      res.FACCH,
			NErrors:    res.Stats.NErrors,
			NBitsTotal: res.Stats.NBitsTotal,
			CreatedAt:  r.at,
		}
		if err := e.history.Create(rec); err != nil {
			e.logger.Warn("Failed to store decode", logger.Error(err))
		}
	}

	if e.publisher != nil {
		report := publish.Report{
			RequestID:  res.ID,
			Channel:    string(res.Channel),
			Scheme:     res.Scheme.String(),
			OK:         res.OK(),
			Error:      res.Error,
			FACCH:      res.FACCH,
			NErrors:    res.Stats.NErrors,
			NBitsTotal: res.Stats.NBitsTotal,
			BER:        res.BER(),
			Timestamp:  r.at,
		}
		if err := e.publisher.PublishDecode(report); err != nil {
			e.logger.Warn("Failed to publish decode", logger.Error(err))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
