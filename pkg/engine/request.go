package engine

import (
	"fmt"
	"strings"

	"github.com/dbehnke/bts-codec/pkg/codec"
)

// Channel names a logical channel type the engine codes for.
type Channel string

const (
	ChannelXCCH  Channel = "xcch"
	ChannelRACH  Channel = "rach"
	ChannelSCH   Channel = "sch"
	ChannelPDTCH Channel = "pdtch"
	ChannelTCHF  Channel = "tch_f"
	ChannelTCHH  Channel = "tch_h"
)

// Channels lists every channel in a stable order.
var Channels = []Channel{ChannelXCCH, ChannelRACH, ChannelSCH, ChannelPDTCH, ChannelTCHF, ChannelTCHH}

// ParseChannel accepts the channel names with dashes or slashes in place of
// the underscore, so "tch/f" and "TCH-F" both work.
func ParseChannel(name string) (Channel, error) {
	n := strings.ToLower(strings.NewReplacer("/", "_", "-", "_").Replace(strings.TrimSpace(name)))
	for _, c := range Channels {
		if string(c) == n {
			return c, nil
		}
	}
	return "", fmt.Errorf("channel %q: %w", name, ErrUnknownChannel)
}

// Request is one block to encode (Data) or decode (Bursts).
type Request struct {
	Channel Channel `json:"channel" yaml:"channel"`
	Data    []byte  `json:"data,omitempty" yaml:"data,omitempty"`
	Bursts  []int8  `json:"bursts,omitempty" yaml:"bursts,omitempty"`
	// BSIC overrides the configured cell BSIC for RACH.
	BSIC *uint8 `json:"bsic,omitempty" yaml:"bsic,omitempty"`
	// Odd marks a TCH/H block starting on the odd sub-block boundary.
	Odd bool `json:"odd,omitempty" yaml:"odd,omitempty"`
	// AMR overrides the in-band state kept for the channel.
	AMR *codec.AMRFrame `json:"amr,omitempty" yaml:"amr,omitempty"`
}

// EncodeResult holds the hard burst bits of an encoded block.
type EncodeResult struct {
	ID      string       `json:"id" yaml:"id"`
	Channel Channel      `json:"channel" yaml:"channel"`
	Scheme  codec.Scheme `json:"scheme" yaml:"scheme"`
	Bits    []byte       `json:"bits" yaml:"bits"`
}

// DecodeResult is the outcome of one decode. It is returned together with
// the error when decoding fails so the statistics are never lost.
type DecodeResult struct {
	ID      string       `json:"id" yaml:"id"`
	Channel Channel      `json:"channel" yaml:"channel"`
	Scheme  codec.Scheme `json:"scheme" yaml:"scheme"`
	Data    []byte       `json:"data,omitempty" yaml:"data,omitempty"`
	// USF is set for PDTCH blocks.
	USF   *uint8 `json:"usf,omitempty" yaml:"usf,omitempty"`
	FACCH bool   `json:"facch,omitempty" yaml:"facch,omitempty"`
	// InBandID is the detected AMR in-band id, -1 when not applicable.
	InBandID int             `json:"in_band_id" yaml:"in_band_id"`
	AMR      *codec.AMRFrame `json:"amr,omitempty" yaml:"amr,omitempty"`
	Header   *codec.Stats    `json:"header,omitempty" yaml:"header,omitempty"`
	Stats    codec.Stats     `json:"stats" yaml:"stats"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the block decoded.
func (r *DecodeResult) OK() bool { return r.Error == "" }

// BER returns the Viterbi stage bit error ratio of the block.
func (r *DecodeResult) BER() float64 { return r.Stats.BER() }
