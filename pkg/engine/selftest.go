package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dbehnke/bts-codec/pkg/channelsim"
	"github.com/dbehnke/bts-codec/pkg/codec"
	"github.com/dbehnke/bts-codec/pkg/logger"
)

// SelfTestOptions selects what the self test runs.
type SelfTestOptions struct {
	SNRdB  float64
	Blocks int
	Seed   uint64
	// Schemes defaults to every scheme when empty.
	Schemes []codec.Scheme
}

// SchemeReport is the self test outcome of one scheme.
type SchemeReport struct {
	Scheme      codec.Scheme `json:"scheme" yaml:"scheme"`
	Blocks      int          `json:"blocks" yaml:"blocks"`
	Passed      int          `json:"passed" yaml:"passed"`
	CRCFailures int          `json:"crc_failures" yaml:"crc_failures"`
	// RawBER is the channel bit error ratio before decoding.
	RawBER float64 `json:"raw_ber" yaml:"raw_ber"`
	// MeanBER and StdBER summarise the decoder statistics per block.
	MeanBER float64 `json:"mean_ber" yaml:"mean_ber"`
	StdBER  float64 `json:"std_ber" yaml:"std_ber"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// SelfTestReport collects the outcome of every scheme.
type SelfTestReport struct {
	SNRdB    float64        `json:"snr_db" yaml:"snr_db"`
	Blocks   int            `json:"blocks" yaml:"blocks"`
	Seed     uint64         `json:"seed" yaml:"seed"`
	Duration time.Duration  `json:"duration" yaml:"duration"`
	Schemes  []SchemeReport `json:"schemes" yaml:"schemes"`
}

// Failed counts blocks that did not come back intact.
func (r *SelfTestReport) Failed() int {
	n := 0
	for _, s := range r.Schemes {
		n += s.Blocks - s.Passed
	}
	return n
}

// YAML renders the report.
func (r *SelfTestReport) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// selfTestCase wires one scheme to its codec functions.
type selfTestCase struct {
	octets int
	magic  byte // high nibble forced into the first octet, 0 for none
	encode func(data []byte) ([]byte, error)
	decode func(bursts []int8) ([]byte, codec.Stats, error)
}

func pdtchCase(octets int) selfTestCase {
	return selfTestCase{
		octets: octets,
		encode: codec.EncodePDTCH,
		decode: func(b []int8) ([]byte, codec.Stats, error) {
			r, err := codec.DecodePDTCH(b, codec.PDTCHOptions{})
			return r.Data, r.Stats.Add(r.Header), err
		},
	}
}

func tchCase(octets int, magic byte, enc func([]byte) ([]byte, error), dec func([]int8) (codec.TCHResult, error)) selfTestCase {
	return selfTestCase{
		octets: octets,
		magic:  magic,
		encode: enc,
		decode: func(b []int8) ([]byte, codec.Stats, error) {
			r, err := dec(b)
			return r.Data, r.Stats, err
		},
	}
}

func amrCase(m codec.AMRMode, half bool) selfTestCase {
	cfg := codec.AMRConfig{Codecs: []codec.AMRMode{m}}
	if half {
		return tchCase(m.Octets(), 0,
			func(d []byte) ([]byte, error) { return codec.EncodeAHS(d, cfg, codec.AMRFrame{}) },
			func(b []int8) (codec.TCHResult, error) { return codec.DecodeAHS(b, false, cfg, nil) })
	}
	return tchCase(m.Octets(), 0,
		func(d []byte) ([]byte, error) { return codec.EncodeAFS(d, cfg, codec.AMRFrame{}) },
		func(b []int8) (codec.TCHResult, error) { return codec.DecodeAFS(b, cfg, nil) })
}

func caseFor(info codec.SchemeInfo) (selfTestCase, error) {
	s := info.Scheme
	switch {
	case s == codec.SchemeXCCH:
		return selfTestCase{octets: info.Octets, encode: codec.EncodeXCCH, decode: codec.DecodeXCCH}, nil
	case s == codec.SchemeRACH:
		return selfTestCase{
			octets: 1,
			encode: func(d []byte) ([]byte, error) { return codec.EncodeRACH(d[0], 0) },
			decode: func(b []int8) ([]byte, codec.Stats, error) {
				ra, st, err := codec.DecodeRACH(b, 0)
				return []byte{ra}, st, err
			},
		}, nil
	case s == codec.SchemeSCH:
		return selfTestCase{octets: info.Octets, encode: codec.EncodeSCH, decode: codec.DecodeSCH}, nil
	case s.IsPDTCH():
		return pdtchCase(info.Octets), nil
	case s == codec.SchemeFR, s == codec.SchemeEFR:
		mode, magic := codec.ModeFR, byte(0xd)
		if s == codec.SchemeEFR {
			mode, magic = codec.ModeEFR, 0xc
		}
		return tchCase(info.Octets, magic,
			func(d []byte) ([]byte, error) { return codec.EncodeTCHF(d, mode) },
			func(b []int8) (codec.TCHResult, error) { return codec.DecodeTCHF(b, mode) }), nil
	case s == codec.SchemeFACCHF:
		return tchCase(info.Octets, 0,
			func(d []byte) ([]byte, error) { return codec.EncodeTCHF(d, codec.ModeFR) },
			func(b []int8) (codec.TCHResult, error) { return codec.DecodeTCHF(b, codec.ModeFR) }), nil
	case s == codec.SchemeHR, s == codec.SchemeFACCHH:
		return tchCase(info.Octets, 0, codec.EncodeTCHH,
			func(b []int8) (codec.TCHResult, error) { return codec.DecodeTCHH(b, false) }), nil
	}
	for m := codec.AMR475; m <= codec.AMR122; m++ {
		if m.AFSScheme() == s {
			return amrCase(m, false), nil
		}
		if m.HalfRate() && m.AHSScheme() == s {
			return amrCase(m, true), nil
		}
	}
	return selfTestCase{}, fmt.Errorf("self test of %s: %w", s, codec.ErrInvalidMode)
}

// SelfTest pushes random blocks of every selected scheme through an AWGN
// channel and checks that the decoded payload matches the payload decoded
// from a noiseless copy.
func (e *Engine) SelfTest(ctx context.Context, opts SelfTestOptions) (*SelfTestReport, error) {
	if opts.Blocks < 1 {
		return nil, fmt.Errorf("self test needs at least one block, got %d", opts.Blocks)
	}

	var infos []codec.SchemeInfo
	if len(opts.Schemes) == 0 {
		infos = codec.Schemes()
	} else {
		for _, s := range opts.Schemes {
			info, ok := s.Info()
			if !ok {
				return nil, fmt.Errorf("self test of %s: %w", s, codec.ErrInvalidMode)
			}
			infos = append(infos, info)
		}
	}

	cases := make([]selfTestCase, len(infos))
	for i, info := range infos {
		c, err := caseFor(info)
		if err != nil {
			return nil, err
		}
		cases[i] = c
	}

	start := time.Now()
	report := &SelfTestReport{SNRdB: opts.SNRdB, Blocks: opts.Blocks, Seed: opts.Seed,
		Schemes: make([]SchemeReport, len(infos))}

	var wg sync.WaitGroup
	for i := range infos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seed := opts.Seed + uint64(i)*0x10001
			report.Schemes[i] = runScheme(ctx, infos[i].Scheme, cases[i], opts, seed)
		}(i)
	}
	wg.Wait()
	report.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, s := range report.Schemes {
		if e.metrics != nil {
			e.metrics.RecordSelfTest(s.Scheme.String(), s.MeanBER)
		}
	}
	if p, ok := e.publisher.(interface {
		PublishJSON(kind, channel string, v interface{}) error
	}); ok {
		if err := p.PublishJSON("selftest", "all", report); err != nil {
			e.logger.Warn("Failed to publish self test", logger.Error(err))
		}
	}
	e.logger.Info("Self test finished",
		logger.Float64("snr_db", opts.SNRdB),
		logger.Int("schemes", len(report.Schemes)),
		logger.Int("failed_blocks", report.Failed()),
		logger.Duration("duration", report.Duration))
	return report, nil
}

func runScheme(ctx context.Context, s codec.Scheme, c selfTestCase, opts SelfTestOptions, seed uint64) SchemeReport {
	rep := SchemeReport{Scheme: s}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	ch := channelsim.New(opts.SNRdB, seed)

	var bers, raws []float64
	for b := 0; b < opts.Blocks; b++ {
		if ctx.Err() != nil {
			break
		}
		data := make([]byte, c.octets)
		for i := range data {
			data[i] = byte(rng.UintN(256))
		}
		if c.magic != 0 {
			data[0] = c.magic<<4 | data[0]&0x0f
		}

		tx, err := c.encode(data)
		if err != nil {
			rep.Error = err.Error()
			break
		}
		want, _, err := c.decode(channelsim.Perfect(tx))
		if err != nil {
			rep.Error = fmt.Sprintf("noiseless decode: %v", err)
			break
		}

		rx := ch.Transmit(tx)
		got, st, err := c.decode(rx)
		rep.Blocks++
		raws = append(raws, channelsim.RawBER(tx, rx))
		if st.NBitsTotal > 0 {
			bers = append(bers, st.BER())
		}
		switch {
		case err == nil && bytes.Equal(got, want):
			rep.Passed++
		case errors.Is(err, codec.ErrCRC), errors.Is(err, codec.ErrHeaderCRC):
			rep.CRCFailures++
		}
	}

	rep.RawBER, _ = channelsim.Summary(raws)
	rep.MeanBER, rep.StdBER = channelsim.Summary(bers)
	return rep
}
