package codec

import (
	"fmt"
	"strings"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
)

// AMRMode is one of the eight AMR narrowband codec modes.
type AMRMode uint8

const (
	AMR475 AMRMode = iota
	AMR515
	AMR59
	AMR67
	AMR74
	AMR795
	AMR102
	AMR122
)

type amrModeInfo struct {
	name string
	bits int

	afs     *conv.Code
	afsProt int

	ahs       *conv.Code // nil above 7.95
	ahsClass1 int
	ahsProt   int

	afsScheme Scheme
	ahsScheme Scheme
}

var amrModes = []amrModeInfo{
	{"4.75", 95, conv.AFS475, 39, conv.AHS475, 83, 39, SchemeAFS475, SchemeAHS475},
	{"5.15", 103, conv.AFS515, 49, conv.AHS515, 91, 49, SchemeAFS515, SchemeAHS515},
	{"5.9", 118, conv.AFS59, 55, conv.AHS59, 102, 55, SchemeAFS59, SchemeAHS59},
	{"6.7", 134, conv.AFS67, 55, conv.AHS67, 110, 55, SchemeAFS67, SchemeAHS67},
	{"7.4", 148, conv.AFS74, 61, conv.AHS74, 120, 61, SchemeAFS74, SchemeAHS74},
	{"7.95", 159, conv.AFS795, 75, conv.AHS795, 123, 67, SchemeAFS795, SchemeAHS795},
	{"10.2", 204, conv.AFS102, 65, nil, 0, 0, SchemeAFS102, SchemeUnknown},
	{"12.2", 244, conv.AFS122, 81, nil, 0, 0, SchemeAFS122, SchemeUnknown},
}

// Valid reports whether m names a mode.
func (m AMRMode) Valid() bool { return int(m) < len(amrModes) }

func (m AMRMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("AMRMode(%d)", uint8(m))
	}
	return amrModes[m].name
}

// Bits is the speech frame size of the mode.
func (m AMRMode) Bits() int { return amrModes[m].bits }

// Octets is the speech frame size rounded up to whole octets.
func (m AMRMode) Octets() int { return bits.OctetsFor(amrModes[m].bits) }

// AFSScheme and AHSScheme name the mode on a full or half rate channel.
func (m AMRMode) AFSScheme() Scheme { return amrModes[m].afsScheme }
func (m AMRMode) AHSScheme() Scheme { return amrModes[m].ahsScheme }

// HalfRate reports whether the mode fits a TCH/H.
func (m AMRMode) HalfRate() bool { return m <= AMR795 }

// ParseAMRMode accepts "4.75" through "12.2", with or without a kbit/s
// suffix or an "amr" prefix.
func ParseAMRMode(name string) (AMRMode, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "amr")
	n = strings.TrimSuffix(n, "kbps")
	n = strings.TrimSpace(strings.TrimPrefix(n, "_"))
	n = strings.ReplaceAll(n, "_", ".")
	for i, info := range amrModes {
		if info.name == n {
			return AMRMode(i), nil
		}
	}
	return 0, fmt.Errorf("amr mode %q: %w", name, ErrInvalidMode)
}

// AMRConfig is the active codec set of a call, lowest mode first.
type AMRConfig struct {
	Codecs []AMRMode `json:"codecs" yaml:"codecs"`
}

// Validate checks the set for a full rate (halfRate false) or half rate
// channel.
func (c AMRConfig) Validate(halfRate bool) error {
	if len(c.Codecs) < 1 || len(c.Codecs) > 4 {
		return fmt.Errorf("active codec set of %d modes: %w", len(c.Codecs), ErrInvalidMode)
	}
	for i, m := range c.Codecs {
		if !m.Valid() {
			return fmt.Errorf("active codec %d: %w", m, ErrInvalidMode)
		}
		if halfRate && !m.HalfRate() {
			return fmt.Errorf("amr %s on a half rate channel: %w", m, ErrInvalidMode)
		}
		if i > 0 && m <= c.Codecs[i-1] {
			return fmt.Errorf("active codec set %v not ascending: %w", c.Codecs, ErrInvalidMode)
		}
	}
	return nil
}

// AMRFrame carries the in-band signalling of one frame. FT is the frame
// type (index of the mode in use), CMR the codec mode request. When
// CodecModeRequest is set the in-band bits carry CMR, otherwise FT.
type AMRFrame struct {
	CodecModeRequest bool  `json:"codec_mode_request" yaml:"codec_mode_request"`
	FT               uint8 `json:"ft" yaml:"ft"`
	CMR              uint8 `json:"cmr" yaml:"cmr"`
}

func (f AMRFrame) inBandID() uint8 {
	if f.CodecModeRequest {
		return f.CMR
	}
	return f.FT
}

// encodeMode resolves the mode of an outgoing frame and its in-band id.
func (c AMRConfig) encodeMode(f AMRFrame, halfRate bool) (AMRMode, int, error) {
	if err := c.Validate(halfRate); err != nil {
		return 0, 0, err
	}
	if int(f.FT) >= len(c.Codecs) {
		return 0, 0, &ModeError{ID: int(f.FT), Limit: len(c.Codecs)}
	}
	id := f.inBandID()
	if int(id) >= len(c.Codecs) {
		return 0, 0, &ModeError{ID: int(id), Limit: len(c.Codecs)}
	}
	return c.Codecs[f.FT], int(id), nil
}

// decodeMode picks the mode of a received frame. A frame carrying a
// request is sent in the previously indicated mode.
func (c AMRConfig) decodeMode(f *AMRFrame, id int) (AMRMode, error) {
	if id >= len(c.Codecs) {
		return 0, &ModeError{ID: id, Limit: len(c.Codecs)}
	}
	if !f.CodecModeRequest {
		return c.Codecs[id], nil
	}
	if int(f.FT) >= len(c.Codecs) {
		return 0, &ModeError{ID: int(f.FT), Limit: len(c.Codecs)}
	}
	return c.Codecs[f.FT], nil
}

func (f *AMRFrame) update(id int) {
	if f.CodecModeRequest {
		f.CMR = uint8(id)
	} else {
		f.FT = uint8(id)
	}
}

// amrProtect builds the coder input: protected bits, six parity bits, then
// the rest of the coded class.
func amrProtect(d []byte, prot, class1 int) []byte {
	u := make([]byte, class1+crc.AMR.Bits)
	copy(u, d[:prot])
	crc.AMR.SetBits(d[:prot], u[prot:prot+crc.AMR.Bits])
	copy(u[prot+crc.AMR.Bits:], d[prot:class1])
	return u
}

func amrUnprotect(u []byte, d []byte, prot, class1 int) error {
	copy(d, u[:prot])
	copy(d[prot:class1], u[prot+crc.AMR.Bits:])
	return crc.AMR.CheckBits(d[:prot], u[prot:prot+crc.AMR.Bits])
}

func amrFrameBits(data []byte, m AMRMode) ([]byte, error) {
	if len(data) != m.Octets() {
		return nil, fmt.Errorf("amr %s frame of %d octets, want %d: %w", m, len(data), m.Octets(), ErrUnsupportedLength)
	}
	d := make([]byte, m.Bits())
	bits.UnpackMSB(d, 0, data, 0, m.Bits())
	return d, nil
}

func amrFrameOctets(d []byte, m AMRMode) []byte {
	out := make([]byte, m.Octets())
	bits.PackMSB(out, 0, d, 0, m.Bits())
	return out
}

const (
	afsInBandLen = 8
	ahsInBandLen = 4
)

// EncodeAFS codes an AMR speech frame on a full rate channel. The frame
// must have the size of cfg.Codecs[f.FT]; a 23 octet block is a FACCH/F.
func EncodeAFS(data []byte, cfg AMRConfig, f AMRFrame) ([]byte, error) {
	if len(data) == MACBlockLen {
		return EncodeTCHF(data, ModeAFS)
	}
	m, id, err := cfg.encodeMode(f, false)
	if err != nil {
		return nil, fmt.Errorf("afs: %w", err)
	}
	d, err := amrFrameBits(data, m)
	if err != nil {
		return nil, err
	}
	info := amrModes[m]

	cB := make([]byte, 456)
	copy(cB, afsInBand[id])
	u := amrProtect(d, info.afsProt, info.bits)
	if _, err := info.afs.Encode(u, cB[afsInBandLen:]); err != nil {
		return nil, err
	}
	return mapTCHF(cB, 0), nil
}

// DecodeAFS decodes eight bursts of an AMR full rate channel. f holds the
// in-band state of the call; on success its FT or CMR is replaced by the
// received id. f may be nil.
func DecodeAFS(bursts []int8, cfg AMRConfig, f *AMRFrame) (TCHResult, error) {
	if err := needBursts(len(bursts), TCHFBlockBits); err != nil {
		return TCHResult{InBandID: -1}, fmt.Errorf("afs: %w", err)
	}
	if err := cfg.Validate(false); err != nil {
		return TCHResult{InBandID: -1}, fmt.Errorf("afs: %w", err)
	}
	if f == nil {
		f = &AMRFrame{}
	}

	cB, stolen := unmapTCHF(bursts)
	if stolen {
		return decodeFACCH(cB, SchemeFACCHF)
	}

	id := nearest(afsInBand, cB[:afsInBandLen])
	res := TCHResult{InBandID: id}
	m, err := cfg.decodeMode(f, id)
	if err != nil {
		return res, fmt.Errorf("afs: %w", err)
	}
	info := amrModes[m]
	res.Scheme = info.afsScheme

	u := make([]byte, info.afs.Len)
	nErr, nTotal, err := info.afs.DecodeBER(cB[afsInBandLen:], u)
	if err != nil {
		return res, err
	}
	res.Stats = Stats{NErrors: nErr, NBitsTotal: nTotal}

	d := make([]byte, info.bits)
	if err := amrUnprotect(u, d, info.afsProt, info.bits); err != nil {
		return res, fmt.Errorf("%s: %w: %w", res.Scheme, ErrCRC, err)
	}
	f.update(id)
	res.Data = amrFrameOctets(d, m)
	return res, nil
}

// EncodeAHS codes an AMR speech frame on a half rate channel. Modes above
// 7.95 are not allowed; a 23 octet block is a FACCH/H.
func EncodeAHS(data []byte, cfg AMRConfig, f AMRFrame) ([]byte, error) {
	if len(data) == MACBlockLen {
		return EncodeTCHH(data)
	}
	m, id, err := cfg.encodeMode(f, true)
	if err != nil {
		return nil, fmt.Errorf("ahs: %w", err)
	}
	d, err := amrFrameBits(data, m)
	if err != nil {
		return nil, err
	}
	info := amrModes[m]

	cB := make([]byte, hrBlockLen)
	copy(cB, ahsInBand[id])
	coded := ahsInBandLen + info.ahs.EncodedLen()
	u := amrProtect(d, info.ahsProt, info.ahsClass1)
	if _, err := info.ahs.Encode(u, cB[ahsInBandLen:coded]); err != nil {
		return nil, err
	}
	copy(cB[coded:], d[info.ahsClass1:])
	return mapTCHH(cB, 0), nil
}

// DecodeAHS decodes an AMR half rate block. FACCH/H detection follows
// DecodeTCHH.
func DecodeAHS(bursts []int8, odd bool, cfg AMRConfig, f *AMRFrame) (TCHResult, error) {
	if err := needBursts(len(bursts), NormalBlockBits); err != nil {
		return TCHResult{InBandID: -1}, fmt.Errorf("ahs: %w", err)
	}
	if err := cfg.Validate(true); err != nil {
		return TCHResult{InBandID: -1}, fmt.Errorf("ahs: %w", err)
	}
	if f == nil {
		f = &AMRFrame{}
	}
	if facchHStolen(bursts, odd) {
		return decodeFACCH(unmapFACCHH(bursts), SchemeFACCHH)
	}

	cB := unmapTCHH(bursts)
	id := nearest(ahsInBand, cB[:ahsInBandLen])
	res := TCHResult{InBandID: id}
	m, err := cfg.decodeMode(f, id)
	if err != nil {
		return res, fmt.Errorf("ahs: %w", err)
	}
	info := amrModes[m]
	res.Scheme = info.ahsScheme

	coded := ahsInBandLen + info.ahs.EncodedLen()
	u := make([]byte, info.ahs.Len)
	nErr, nTotal, err := info.ahs.DecodeBER(cB[ahsInBandLen:coded], u)
	if err != nil {
		return res, err
	}
	res.Stats = Stats{NErrors: nErr, NBitsTotal: nTotal}

	d := make([]byte, info.bits)
	bits.HardSlice(d[info.ahsClass1:], cB[coded:])
	if err := amrUnprotect(u, d, info.ahsProt, info.ahsClass1); err != nil {
		return res, fmt.Errorf("%s: %w: %w", res.Scheme, ErrCRC, err)
	}
	f.update(id)
	res.Data = amrFrameOctets(d, m)
	return res, nil
}
