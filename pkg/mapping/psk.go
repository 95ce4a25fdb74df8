package mapping

import "github.com/dbehnke/bts-codec/pkg/bits"

type field uint8

const (
	fieldData field = iota
	fieldHeader
	fieldUSF
	fieldQ
)

type slot struct {
	f   field
	off int // index within the burst's share of the field
}

// Layout describes where one 8PSK burst carries data, header, USF precode
// and q bits. The q bits identify the layout on reception.
type Layout struct {
	Name   string
	Data   int // data bits per burst
	Header int // header bits per burst
	USF    int // USF precode bits per burst
	Q      [8]byte

	slots [EightPSKLen]slot
}

type segment struct {
	f     field
	first int
	last  int
}

func newLayout(name string, data, header int, q [8]byte, segs []segment) *Layout {
	l := &Layout{Name: name, Data: data, Header: header, USF: 9, Q: q}
	var next [4]int
	for _, s := range segs {
		for j := s.first; j <= s.last; j++ {
			l.slots[j] = slot{f: s.f, off: next[s.f]}
			next[s.f]++
		}
	}
	if next[fieldData] != data || next[fieldHeader] != header || next[fieldUSF] != l.USF || next[fieldQ] != 2 {
		panic("mapping: inconsistent 8PSK layout " + name)
	}
	return l
}

// 8PSK burst layouts.
var (
	// MCS5 carries 312 data and 25 header bits per burst; q is all zero.
	MCS5 = newLayout("mcs5", 312, 25, [8]byte{}, []segment{
		{fieldData, 0, 155},
		{fieldHeader, 156, 167},
		{fieldUSF, 168, 173},
		{fieldQ, 174, 175},
		{fieldUSF, 176, 178},
		{fieldHeader, 179, 191},
		{fieldData, 192, 347},
	})

	// MCS7 carries 306 data and 31 header bits per burst.
	MCS7 = newLayout("mcs7", 306, 31, [8]byte{1, 1, 1, 0, 0, 1, 1, 1}, []segment{
		{fieldData, 0, 152},
		{fieldHeader, 153, 167},
		{fieldUSF, 168, 173},
		{fieldQ, 174, 175},
		{fieldUSF, 176, 178},
		{fieldHeader, 179, 194},
		{fieldData, 195, 347},
	})
)

// Map8PSK fills burst b (0-3) of a block from the interleaved data, header
// and USF precode sequences.
func (l *Layout) Map8PSK(eB []byte, di, hi, up []byte, b int) {
	for j, s := range l.slots {
		switch s.f {
		case fieldData:
			eB[j] = di[l.Data*b+s.off]
		case fieldHeader:
			eB[j] = hi[l.Header*b+s.off]
		case fieldUSF:
			eB[j] = up[l.USF*b+s.off]
		case fieldQ:
			eB[j] = l.Q[2*b+s.off]
		}
	}
}

// Unmap8PSK is the inverse of Map8PSK. Any of di, hi and up may be nil.
func (l *Layout) Unmap8PSK(eB []int8, di, hi, up []int8, b int) {
	for j, s := range l.slots {
		switch {
		case s.f == fieldData && di != nil:
			di[l.Data*b+s.off] = eB[j]
		case s.f == fieldHeader && hi != nil:
			hi[l.Header*b+s.off] = eB[j]
		case s.f == fieldUSF && up != nil:
			up[l.USF*b+s.off] = eB[j]
		}
	}
}

// QBits collects the two q bits of each of the four bursts in a block.
func QBits(bursts []int8) []int8 {
	q := make([]int8, 8)
	for b := 0; b < 4; b++ {
		copy(q[2*b:], bursts[b*EightPSKLen+174:b*EightPSKLen+176])
	}
	return q
}

// Detect8PSK picks the layout whose q pattern is nearest to the received one.
func Detect8PSK(bursts []int8) *Layout {
	q := QBits(bursts)
	var best *Layout
	bestDist := 0
	for _, l := range []*Layout{MCS5, MCS7} {
		d := bits.HammingSoft(l.Q[:], q)
		if best == nil || d < bestDist {
			best, bestDist = l, d
		}
	}
	return best
}
