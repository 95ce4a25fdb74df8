package codec

import (
	"fmt"
	"strings"
)

// Scheme names one channel coding variant.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeXCCH
	SchemeRACH
	SchemeSCH
	SchemeCS1
	SchemeCS2
	SchemeCS3
	SchemeCS4
	SchemeMCS1
	SchemeMCS2
	SchemeMCS3
	SchemeMCS4
	SchemeMCS5
	SchemeMCS6
	SchemeMCS7
	SchemeMCS8
	SchemeMCS9
	SchemeFR
	SchemeEFR
	SchemeHR
	SchemeFACCHF
	SchemeFACCHH
	SchemeAFS475
	SchemeAFS515
	SchemeAFS59
	SchemeAFS67
	SchemeAFS74
	SchemeAFS795
	SchemeAFS102
	SchemeAFS122
	SchemeAHS475
	SchemeAHS515
	SchemeAHS59
	SchemeAHS67
	SchemeAHS74
	SchemeAHS795
)

// SchemeInfo is the static description of a scheme.
type SchemeInfo struct {
	Scheme    Scheme `json:"-" yaml:"-"`
	Name      string `json:"name" yaml:"name"`
	Octets    int    `json:"octets" yaml:"octets"`
	Bursts    int    `json:"bursts" yaml:"bursts"`
	BurstBits int    `json:"burst_bits" yaml:"burst_bits"`
	CRCBits   int    `json:"crc_bits" yaml:"crc_bits"`
	CodedBits int    `json:"coded_bits" yaml:"coded_bits"`
}

var schemeTable = []SchemeInfo{
	{SchemeXCCH, "xCCH", 23, 4, 116, 40, 456},
	{SchemeRACH, "RACH", 1, 1, 36, 6, 36},
	{SchemeSCH, "SCH", 4, 1, 78, 10, 78},
	{SchemeCS1, "CS-1", 23, 4, 116, 40, 456},
	{SchemeCS2, "CS-2", 34, 4, 116, 16, 456},
	{SchemeCS3, "CS-3", 40, 4, 116, 16, 456},
	{SchemeCS4, "CS-4", 54, 4, 116, 16, 456},
	{SchemeMCS1, "MCS-1", 27, 4, 116, 12, 456},
	{SchemeMCS2, "MCS-2", 33, 4, 116, 12, 456},
	{SchemeMCS3, "MCS-3", 42, 4, 116, 12, 456},
	{SchemeMCS4, "MCS-4", 49, 4, 116, 12, 456},
	{SchemeMCS5, "MCS-5", 60, 4, 348, 12, 1392},
	{SchemeMCS6, "MCS-6", 78, 4, 348, 12, 1392},
	{SchemeMCS7, "MCS-7", 118, 4, 348, 12, 1392},
	{SchemeMCS8, "MCS-8", 142, 4, 348, 12, 1392},
	{SchemeMCS9, "MCS-9", 154, 4, 348, 12, 1392},
	{SchemeFR, "FR", 33, 8, 116, 3, 456},
	{SchemeEFR, "EFR", 31, 8, 116, 8, 456},
	{SchemeHR, "HR", 14, 4, 116, 3, 228},
	{SchemeFACCHF, "FACCH/F", 23, 8, 116, 40, 456},
	{SchemeFACCHH, "FACCH/H", 23, 6, 116, 40, 456},
	{SchemeAFS475, "AFS4.75", 12, 8, 116, 6, 456},
	{SchemeAFS515, "AFS5.15", 13, 8, 116, 6, 456},
	{SchemeAFS59, "AFS5.9", 15, 8, 116, 6, 456},
	{SchemeAFS67, "AFS6.7", 17, 8, 116, 6, 456},
	{SchemeAFS74, "AFS7.4", 19, 8, 116, 6, 456},
	{SchemeAFS795, "AFS7.95", 20, 8, 116, 6, 456},
	{SchemeAFS102, "AFS10.2", 26, 8, 116, 6, 456},
	{SchemeAFS122, "AFS12.2", 31, 8, 116, 6, 456},
	{SchemeAHS475, "AHS4.75", 12, 4, 116, 6, 228},
	{SchemeAHS515, "AHS5.15", 13, 4, 116, 6, 228},
	{SchemeAHS59, "AHS5.9", 15, 4, 116, 6, 228},
	{SchemeAHS67, "AHS6.7", 17, 4, 116, 6, 228},
	{SchemeAHS74, "AHS7.4", 19, 4, 116, 6, 228},
	{SchemeAHS795, "AHS7.95", 20, 4, 116, 6, 228},
}

// Schemes lists every scheme the package implements.
func Schemes() []SchemeInfo {
	out := make([]SchemeInfo, len(schemeTable))
	copy(out, schemeTable)
	return out
}

// Info returns the static description of s.
func (s Scheme) Info() (SchemeInfo, bool) {
	for _, i := range schemeTable {
		if i.Scheme == s {
			return i, true
		}
	}
	return SchemeInfo{}, false
}

func (s Scheme) String() string {
	if i, ok := s.Info(); ok {
		return i.Name
	}
	return "unknown"
}

// MarshalText renders the scheme name in JSON and YAML output.
func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any name ParseScheme does, and "unknown".
func (s *Scheme) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*s = SchemeUnknown
		return nil
	}
	v, err := ParseScheme(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScheme resolves a scheme name, ignoring case and dashes.
func ParseScheme(name string) (Scheme, error) {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "-", ""))
	}
	for _, i := range schemeTable {
		if norm(i.Name) == norm(name) {
			return i.Scheme, nil
		}
	}
	return SchemeUnknown, fmt.Errorf("scheme %q: %w", name, ErrInvalidMode)
}

// IsPDTCH reports whether s is a packet data scheme.
func (s Scheme) IsPDTCH() bool { return s >= SchemeCS1 && s <= SchemeMCS9 }

// IsEGPRS reports whether s is one of MCS-1 to MCS-9.
func (s Scheme) IsEGPRS() bool { return s >= SchemeMCS1 && s <= SchemeMCS9 }

// PDTCHSchemeForLength maps a PDTCH block length in octets to its scheme.
func PDTCHSchemeForLength(n int) (Scheme, error) {
	for _, i := range schemeTable {
		if i.Scheme.IsPDTCH() && i.Octets == n {
			return i.Scheme, nil
		}
	}
	return SchemeUnknown, fmt.Errorf("pdtch block of %d octets: %w", n, ErrUnsupportedLength)
}

// ChannelMode is the speech mode a traffic channel is configured for.
type ChannelMode int

const (
	ModeFR ChannelMode = iota
	ModeEFR
	ModeHR
	ModeAFS
	ModeAHS
)

var channelModeNames = []string{"fr", "efr", "hr", "afs", "ahs"}

func (m ChannelMode) String() string {
	if m < 0 || int(m) >= len(channelModeNames) {
		return "invalid"
	}
	return channelModeNames[m]
}

// FullRate reports whether the mode runs on a TCH/F.
func (m ChannelMode) FullRate() bool {
	return m == ModeFR || m == ModeEFR || m == ModeAFS
}

// ParseChannelMode resolves "fr", "efr", "hr", "afs" or "ahs".
func ParseChannelMode(name string) (ChannelMode, error) {
	for i, n := range channelModeNames {
		if strings.EqualFold(n, name) {
			return ChannelMode(i), nil
		}
	}
	return 0, fmt.Errorf("channel mode %q: %w", name, ErrInvalidMode)
}

// TCHSchemeForLength maps a traffic block length to its scheme under mode.
// A 23 octet block is always FACCH.
func TCHSchemeForLength(n int, mode ChannelMode) (Scheme, error) {
	if mode < ModeFR || mode > ModeAHS {
		return SchemeUnknown, fmt.Errorf("channel mode %d: %w", mode, ErrInvalidMode)
	}
	if n == MACBlockLen {
		if mode.FullRate() {
			return SchemeFACCHF, nil
		}
		return SchemeFACCHH, nil
	}
	switch mode {
	case ModeFR:
		if n == 33 {
			return SchemeFR, nil
		}
	case ModeEFR:
		if n == 31 {
			return SchemeEFR, nil
		}
	case ModeHR:
		if n == 14 {
			return SchemeHR, nil
		}
	case ModeAFS, ModeAHS:
		for m := AMRMode(0); m <= AMR122; m++ {
			if m.Octets() != n {
				continue
			}
			if mode == ModeAFS {
				return m.AFSScheme(), nil
			}
			if m > AMR795 {
				break
			}
			return m.AHSScheme(), nil
		}
	}
	return SchemeUnknown, fmt.Errorf("%s block of %d octets: %w", mode, n, ErrUnsupportedLength)
}
