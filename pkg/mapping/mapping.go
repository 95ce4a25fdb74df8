// Package mapping places interleaved bits into burst payload positions and
// takes them back out, including the per-burst stealing flags of GMSK
// normal bursts and the header, USF and q fields of 8PSK bursts.
package mapping

// Burst geometry.
const (
	BurstLen     = 116 // GMSK normal burst payload with both stealing flags
	HalfLen      = 57
	IBLen        = 114 // interleaved bits carried by one GMSK burst
	EightPSKLen  = 348 // 8PSK burst payload
	flagLow      = 57
	flagHigh     = 58
	secondHalfAt = 59
)

// MapNormal writes the 114 interleaved bits of one burst around the two
// stealing flags hl and hn.
func MapNormal(iB []byte, eB []byte, hl, hn byte) {
	copy(eB[:HalfLen], iB[:HalfLen])
	copy(eB[secondHalfAt:BurstLen], iB[HalfLen:IBLen])
	eB[flagLow] = hl
	eB[flagHigh] = hn
}

// UnmapNormal reads one burst back. iB may be nil when only the flags are
// needed.
func UnmapNormal(eB []int8, iB []int8) (hl, hn int8) {
	if iB != nil {
		copy(iB[:HalfLen], eB[:HalfLen])
		copy(iB[HalfLen:IBLen], eB[secondHalfAt:BurstLen])
	}
	return eB[flagLow], eB[flagHigh]
}

// MapTCH writes only the even (odd == false) or odd positions of iB into a
// traffic burst, plus the stealing flag of that half. A nil iB writes the
// flag alone.
func MapTCH(iB []byte, eB []byte, h byte, odd bool) {
	start := 0
	if odd {
		start = 1
	}
	if iB != nil {
		for i := start; i < HalfLen; i += 2 {
			eB[i] = iB[i]
		}
		for i := HalfLen + 1 - start; i < IBLen; i += 2 {
			eB[i+2] = iB[i]
		}
	}
	eB[tchFlag(odd)] = h
}

// UnmapTCH is the inverse of MapTCH and returns the half's stealing flag.
// iB may be nil.
func UnmapTCH(eB []int8, iB []int8, odd bool) int8 {
	start := 0
	if odd {
		start = 1
	}
	if iB != nil {
		for i := start; i < HalfLen; i += 2 {
			iB[i] = eB[i]
		}
		for i := HalfLen + 1 - start; i < IBLen; i += 2 {
			iB[i] = eB[i+2]
		}
	}
	return eB[tchFlag(odd)]
}

func tchFlag(odd bool) int {
	if odd {
		return flagLow
	}
	return flagHigh
}

// StealingFlags returns both flags of a burst without touching the payload.
func StealingFlags(eB []int8) (hl, hn int8) {
	return eB[flagLow], eB[flagHigh]
}

// Stolen sums flags the way a receiver votes: every flag received as 1 adds
// its confidence. A positive result means the block carries signalling.
func Stolen(flags []int8) bool {
	sum := 0
	for _, h := range flags {
		sum -= int(h)
	}
	return sum > 0
}
