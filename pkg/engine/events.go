package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/bts-codec/pkg/metrics"
)

// DecodeEvent is sent to subscribers after every decode.
type DecodeEvent struct {
	Result    DecodeResult `json:"result"`
	Timestamp time.Time    `json:"timestamp"`
}

// eventBuffer is the per subscriber queue depth. Slow subscribers lose
// events rather than stall decoding.
const eventBuffer = 64

// Subscribe registers a decode event listener. The returned cancel func
// unregisters it and closes the channel.
func (e *Engine) Subscribe() (<-chan DecodeEvent, func()) {
	ch := make(chan DecodeEvent, eventBuffer)

	e.subMu.Lock()
	if e.stopped {
		e.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	n := len(e.subs)
	e.subMu.Unlock()
	e.reportSubscribers(n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
			n := len(e.subs)
			e.subMu.Unlock()
			e.reportSubscribers(n)
		})
	}
}

func (e *Engine) reportSubscribers(n int) {
	if e.metrics != nil {
		e.metrics.SetSubscribers(n)
	}
}

// broadcast delivers an event without blocking.
func (e *Engine) broadcast(ev DecodeEvent) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.counters.dropped.Add(1)
		}
	}
}

// Stop closes every subscriber channel and waits for queued history and
// MQTT reports to be written. Later subscriptions get a closed channel and
// later decodes are no longer reported.
func (e *Engine) Stop() {
	e.subMu.Lock()
	if !e.stopped {
		e.stopped = true
		for id, ch := range e.subs {
			close(ch)
			delete(e.subs, id)
		}
		e.reportSubscribers(0)
	}
	e.subMu.Unlock()

	e.stopReporter()
}

// counters are the in-process totals behind Stats.
type counters struct {
	encodes        atomic.Uint64
	encodeFailures atomic.Uint64
	decodes        atomic.Uint64
	decodeOK       atomic.Uint64
	crcFailures    atomic.Uint64
	modeFailures   atomic.Uint64
	usfFailures    atomic.Uint64
	facch          atomic.Uint64
	bitErrors      atomic.Uint64
	bitsTotal      atomic.Uint64
	dropped        atomic.Uint64
	droppedReports atomic.Uint64
}

func (c *counters) add(res *DecodeResult, label string) {
	c.decodes.Add(1)
	switch label {
	case metrics.ResultOK:
		c.decodeOK.Add(1)
	case metrics.ResultCRC, metrics.ResultHeaderCRC:
		c.crcFailures.Add(1)
	case metrics.ResultMode:
		c.modeFailures.Add(1)
	case metrics.ResultUSF:
		c.usfFailures.Add(1)
	}
	if res.FACCH {
		c.facch.Add(1)
	}
	c.bitErrors.Add(uint64(res.Stats.NErrors))
	c.bitsTotal.Add(uint64(res.Stats.NBitsTotal))
}

// Stats is a snapshot of the engine totals since start.
type Stats struct {
	Uptime         time.Duration `json:"uptime" yaml:"uptime"`
	Encodes        uint64        `json:"encodes" yaml:"encodes"`
	EncodeFailures uint64        `json:"encode_failures" yaml:"encode_failures"`
	Decodes        uint64        `json:"decodes" yaml:"decodes"`
	DecodeOK       uint64        `json:"decode_ok" yaml:"decode_ok"`
	CRCFailures    uint64        `json:"crc_failures" yaml:"crc_failures"`
	ModeFailures   uint64        `json:"mode_failures" yaml:"mode_failures"`
	USFFailures    uint64        `json:"usf_failures" yaml:"usf_failures"`
	FACCH          uint64        `json:"facch" yaml:"facch"`
	BitErrors      uint64        `json:"bit_errors" yaml:"bit_errors"`
	BitsTotal      uint64        `json:"bits_total" yaml:"bits_total"`
	DroppedEvents  uint64        `json:"dropped_events" yaml:"dropped_events"`
	DroppedReports uint64        `json:"dropped_reports" yaml:"dropped_reports"`
	Subscribers    int           `json:"subscribers" yaml:"subscribers"`
}

// MeanBER is the bit error ratio over every decoded bit.
func (s Stats) MeanBER() float64 {
	if s.BitsTotal == 0 {
		return 0
	}
	return float64(s.BitErrors) / float64(s.BitsTotal)
}

// Stats returns the totals since the engine was created.
func (e *Engine) Stats() Stats {
	e.subMu.RLock()
	subs := len(e.subs)
	e.subMu.RUnlock()

	c := &e.counters
	return Stats{
		Uptime:         time.Since(e.startTime),
		Encodes:        c.encodes.Load(),
		EncodeFailures: c.encodeFailures.Load(),
		Decodes:        c.decodes.Load(),
		DecodeOK:       c.decodeOK.Load(),
		CRCFailures:    c.crcFailures.Load(),
		ModeFailures:   c.modeFailures.Load(),
		USFFailures:    c.usfFailures.Load(),
		FACCH:          c.facch.Load(),
		BitErrors:      c.bitErrors.Load(),
		BitsTotal:      c.bitsTotal.Load(),
		DroppedEvents:  c.dropped.Load(),
		DroppedReports: c.droppedReports.Load(),
		Subscribers:    subs,
	}
}
