// Package engine is the configured front of the channel codecs. It resolves
// the cell configuration into codec parameters, keeps the AMR in-band state
// of the traffic channels, and reports every decode to the metrics, the
// history store, the MQTT publisher and live subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbehnke/bts-codec/pkg/codec"
	"github.com/dbehnke/bts-codec/pkg/config"
	"github.com/dbehnke/bts-codec/pkg/database"
	"github.com/dbehnke/bts-codec/pkg/logger"
	"github.com/dbehnke/bts-codec/pkg/metrics"
	"github.com/dbehnke/bts-codec/pkg/publish"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNoInput        = errors.New("request carries no input")
)

// HistoryStore persists decode records.
type HistoryStore interface {
	Create(rec *database.DecodeRecord) error
}

// ReportPublisher sends decode reports out of process.
type ReportPublisher interface {
	PublishDecode(r publish.Report) error
}

// Option customises an Engine.
type Option func(*Engine)

// WithMetrics records every operation in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHistory stores every decode in h.
func WithHistory(h HistoryStore) Option {
	return func(e *Engine) { e.history = h }
}

// WithPublisher publishes every decode through p.
func WithPublisher(p ReportPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// Settings are the codec parameters resolved from the configuration.
type Settings struct {
	BSIC     uint8
	FullMode codec.ChannelMode
	HalfMode codec.ChannelMode
	FullAMR  codec.AMRConfig
	HalfAMR  codec.AMRConfig
	CMR      bool
	PDTCH    codec.PDTCHOptions
	NetOrder bool
}

// SettingsFrom resolves the codec section of a configuration.
func SettingsFrom(c *config.CodecConfig) (Settings, error) {
	full, err := c.FullRateAMR()
	if err != nil {
		return Settings{}, fmt.Errorf("full rate amr: %w", err)
	}
	half, err := c.HalfRateAMR()
	if err != nil {
		return Settings{}, fmt.Errorf("half rate amr: %w", err)
	}
	opts, err := c.PDTCHOptions()
	if err != nil {
		return Settings{}, fmt.Errorf("pdtch: %w", err)
	}
	if c.BSIC < 0 || c.BSIC > 63 {
		return Settings{}, fmt.Errorf("bsic %d: %w", c.BSIC, codec.ErrInvalidBSIC)
	}
	return Settings{
		BSIC:     uint8(c.BSIC),
		FullMode: c.FullRateMode(),
		HalfMode: c.HalfRateMode(),
		FullAMR:  full,
		HalfAMR:  half,
		CMR:      c.AMR.CodecModeRequest,
		PDTCH:    opts,
		NetOrder: c.NetOrder,
	}, nil
}

// Engine encodes and decodes blocks for the configured cell. It is safe for
// concurrent use.
type Engine struct {
	settings  Settings
	logger    *logger.Logger
	metrics   *metrics.Metrics
	history   HistoryStore
	publisher ReportPublisher

	amrMu sync.Mutex
	amr   map[Channel]codec.AMRFrame

	subMu   sync.RWMutex
	subs    map[int]chan DecodeEvent
	nextSub int
	stopped bool

	// History and MQTT writes run on one worker so a slow store or broker
	// does not hold up decoding.
	reportMu     sync.RWMutex
	reports      chan pendingReport
	reportsClose bool
	reportWG     sync.WaitGroup

	startTime time.Time
	counters  counters
}

// New creates an engine from the codec settings.
func New(s Settings, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		settings:  s,
		logger:    log.WithComponent("engine"),
		amr:       make(map[Channel]codec.AMRFrame),
		subs:      make(map[int]chan DecodeEvent),
		startTime: time.Now(),
	}
	for _, o := range opts {
		o(e)
	}
	e.amr[ChannelTCHF] = codec.AMRFrame{CodecModeRequest: s.CMR}
	e.amr[ChannelTCHH] = codec.AMRFrame{CodecModeRequest: s.CMR}
	if e.history != nil || e.publisher != nil {
		e.startReporter()
	}

	e.logger.Info("Engine configured",
		logger.Int("bsic", int(s.BSIC)),
		logger.Stringer("tch_f", s.FullMode),
		logger.Stringer("tch_h", s.HalfMode),
		logger.Any("amr_full", s.FullAMR.Codecs),
		logger.Any("amr_half", s.HalfAMR.Codecs),
		logger.Int("pdtch_schemes", len(s.PDTCH.Schemes)))
	return e
}

// Settings returns the codec settings the engine runs with.
func (e *Engine) Settings() Settings { return e.settings }

// AMRState returns the in-band state kept for a traffic channel.
func (e *Engine) AMRState(ch Channel) codec.AMRFrame {
	e.amrMu.Lock()
	defer e.amrMu.Unlock()
	return e.amr[ch]
}

// SetAMRState replaces the in-band state of a traffic channel.
func (e *Engine) SetAMRState(ch Channel, f codec.AMRFrame) {
	e.amrMu.Lock()
	e.amr[ch] = f
	e.amrMu.Unlock()
}

// amrFrameFor picks the request override or the kept state.
func (e *Engine) amrFrameFor(req Request) codec.AMRFrame {
	if req.AMR != nil {
		return *req.AMR
	}
	return e.AMRState(req.Channel)
}

// Encode codes one block.
func (e *Engine) Encode(ctx context.Context, req Request) (*EncodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("encode %s: %w", req.Channel, ErrNoInput)
	}

	res := &EncodeResult{ID: uuid.New().String(), Channel: req.Channel}
	var err error
	res.Scheme, res.Bits, err = e.encode(req)
	if err != nil {
		e.counters.encodeFailures.Add(1)
		e.logger.Debug("Encode failed",
			logger.String("channel", string(req.Channel)),
			logger.Int("octets", len(req.Data)),
			logger.Error(err))
		return nil, fmt.Errorf("encode %s: %w", req.Channel, err)
	}

	e.counters.encodes.Add(1)
	if e.metrics != nil {
		e.metrics.RecordEncode(string(req.Channel), res.Scheme.String())
	}
	return res, nil
}

func (e *Engine) encode(req Request) (codec.Scheme, []byte, error) {
	s := e.settings
	switch req.Channel {
	case ChannelXCCH:
		b, err := codec.EncodeXCCH(req.Data)
		return codec.SchemeXCCH, b, err
	case ChannelRACH:
		if len(req.Data) != 1 {
			return codec.SchemeRACH, nil, fmt.Errorf("rach of %d octets: %w", len(req.Data), codec.ErrUnsupportedLength)
		}
		b, err := codec.EncodeRACH(req.Data[0], e.bsicFor(req))
		return codec.SchemeRACH, b, err
	case ChannelSCH:
		b, err := codec.EncodeSCH(req.Data)
		return codec.SchemeSCH, b, err
	case ChannelPDTCH:
		scheme, err := codec.PDTCHSchemeForLength(len(req.Data))
		if err != nil {
			return codec.SchemeUnknown, nil, err
		}
		b, err := codec.EncodePDTCH(req.Data)
		return scheme, b, err
	case ChannelTCHF:
		if s.FullMode == codec.ModeAFS {
			f := e.amrFrameFor(req)
			scheme := codec.SchemeFACCHF
			if len(req.Data) != codec.MACBlockLen {
				if int(f.FT) >= len(s.FullAMR.Codecs) {
					return codec.SchemeUnknown, nil, &codec.ModeError{ID: int(f.FT), Limit: len(s.FullAMR.Codecs)}
				}
				scheme = s.FullAMR.Codecs[f.FT].AFSScheme()
			}
			b, err := codec.EncodeAFS(req.Data, s.FullAMR, f)
			return scheme, b, err
		}
		scheme, err := codec.TCHSchemeForLength(len(req.Data), s.FullMode)
		if err != nil {
			return codec.SchemeUnknown, nil, err
		}
		b, err := codec.EncodeTCHF(req.Data, s.FullMode, e.tchOptions()...)
		return scheme, b, err
	case ChannelTCHH:
		if s.HalfMode == codec.ModeAHS {
			f := e.amrFrameFor(req)
			scheme := codec.SchemeFACCHH
			if len(req.Data) != codec.MACBlockLen {
				if int(f.FT) >= len(s.HalfAMR.Codecs) {
					return codec.SchemeUnknown, nil, &codec.ModeError{ID: int(f.FT), Limit: len(s.HalfAMR.Codecs)}
				}
				scheme = s.HalfAMR.Codecs[f.FT].AHSScheme()
			}
			b, err := codec.EncodeAHS(req.Data, s.HalfAMR, f)
			return scheme, b, err
		}
		scheme, err := codec.TCHSchemeForLength(len(req.Data), codec.ModeHR)
		if err != nil {
			return codec.SchemeUnknown, nil, err
		}
		b, err := codec.EncodeTCHH(req.Data)
		return scheme, b, err
	}
	return codec.SchemeUnknown, nil, fmt.Errorf("%q: %w", req.Channel, ErrUnknownChannel)
}

func (e *Engine) bsicFor(req Request) uint8 {
	if req.BSIC != nil {
		return *req.BSIC
	}
	return e.settings.BSIC
}

func (e *Engine) tchOptions() []codec.TCHOption {
	if e.settings.NetOrder {
		return []codec.TCHOption{codec.WithNetOrder()}
	}
	return nil
}

// Decode decodes one block. On a decoding failure both the result, with
// its statistics, and the error are returned.
func (e *Engine) Decode(ctx context.Context, req Request) (*DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Bursts) == 0 {
		return nil, fmt.Errorf("decode %s: %w", req.Channel, ErrNoInput)
	}

	start := time.Now()
	res := &DecodeResult{ID: uuid.New().String(), Channel: req.Channel, InBandID: -1}
	err := e.decode(req, res)
	took := time.Since(start)
	if err != nil {
		res.Error = err.Error()
		err = fmt.Errorf("decode %s: %w", req.Channel, err)
	}

	e.record(res, err, took)
	return res, err
}

func (e *Engine) decode(req Request, res *DecodeResult) error {
	s := e.settings
	switch req.Channel {
	case ChannelXCCH:
		res.Scheme = codec.SchemeXCCH
		data, st, err := codec.DecodeXCCH(req.Bursts)
		res.Data, res.Stats = data, st
		return err
	case ChannelRACH:
		res.Scheme = codec.SchemeRACH
		ra, st, err := codec.DecodeRACH(req.Bursts, e.bsicFor(req))
		res.Stats = st
		if err == nil {
			res.Data = []byte{ra}
		}
		return err
	case ChannelSCH:
		res.Scheme = codec.SchemeSCH
		data, st, err := codec.DecodeSCH(req.Bursts)
		res.Data, res.Stats = data, st
		return err
	case ChannelPDTCH:
		r, err := codec.DecodePDTCH(req.Bursts, s.PDTCH)
		res.Scheme, res.Data, res.Stats = r.Scheme, r.Data, r.Stats
		if r.USFDetected {
			usf := r.USF
			res.USF = &usf
		}
		if r.Scheme.IsEGPRS() {
			h := r.Header
			res.Header = &h
		}
		return err
	case ChannelTCHF:
		if s.FullMode == codec.ModeAFS {
			return e.decodeAMR(req, res, func(f *codec.AMRFrame) (codec.TCHResult, error) {
				return codec.DecodeAFS(req.Bursts, s.FullAMR, f)
			})
		}
		r, err := codec.DecodeTCHF(req.Bursts, s.FullMode, e.tchOptions()...)
		fillTCH(res, r)
		return err
	case ChannelTCHH:
		if s.HalfMode == codec.ModeAHS {
			return e.decodeAMR(req, res, func(f *codec.AMRFrame) (codec.TCHResult, error) {
				return codec.DecodeAHS(req.Bursts, req.Odd, s.HalfAMR, f)
			})
		}
		r, err := codec.DecodeTCHH(req.Bursts, req.Odd)
		fillTCH(res, r)
		return err
	}
	return fmt.Errorf("%q: %w", req.Channel, ErrUnknownChannel)
}

// decodeAMR runs an AMR decoder against the channel state and stores the
// updated state when the request did not bring its own. The state lock is
// held from read to write back, so decodes on one channel apply in turn.
func (e *Engine) decodeAMR(req Request, res *DecodeResult, dec func(*codec.AMRFrame) (codec.TCHResult, error)) error {
	var f codec.AMRFrame
	if req.AMR != nil {
		f = *req.AMR
	} else {
		e.amrMu.Lock()
		defer e.amrMu.Unlock()
		f = e.amr[req.Channel]
	}

	r, err := dec(&f)
	fillTCH(res, r)
	if err == nil && !r.FACCH {
		if req.AMR == nil {
			e.amr[req.Channel] = f
		}
		res.AMR = &f
	}
	return err
}

func fillTCH(res *DecodeResult, r codec.TCHResult) {
	res.Scheme, res.Data, res.Stats = r.Scheme, r.Data, r.Stats
	res.FACCH, res.InBandID = r.FACCH, r.InBandID
}

// resultLabel classifies a decode error for the metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, codec.ErrHeaderCRC):
		return metrics.ResultHeaderCRC
	case errors.Is(err, codec.ErrCRC):
		return metrics.ResultCRC
	case errors.Is(err, codec.ErrModeOutOfRange):
		return metrics.ResultMode
	case errors.Is(err, codec.ErrUSFOutOfRange):
		return metrics.ResultUSF
	}
	return metrics.ResultInvalid
}

// record fans a decode out to every configured sink.
func (e *Engine) record(res *DecodeResult, err error, took time.Duration) {
	label := resultLabel(err)
	e.counters.add(res, label)

	if err != nil {
		e.logger.Debug("Decode failed",
			logger.String("id", res.ID),
			logger.String("channel", string(res.Channel)),
			logger.Stringer("scheme", res.Scheme),
			logger.Int("n_errors", res.Stats.NErrors),
			logger.Int("n_bits_total", res.Stats.NBitsTotal),
			logger.Error(err))
	}

	if e.metrics != nil {
		e.metrics.RecordDecode(string(res.Channel), res.Scheme.String(), label,
			res.Stats.NErrors, res.Stats.NBitsTotal, res.FACCH, took)
	}

	now := time.Now()
	e.enqueueReport(pendingReport{result: *res, at: now})
	e.broadcast(DecodeEvent{Result: *res, Timestamp: now})
}
