package codec

import "sort"

// The FR, HR and EFR class orders below are ranked from parameter
// significance. They are not the published bit order tables, so frames
// coded here do not interoperate with other implementations.

// A speechParam is one codec parameter of a speech frame. Bits of heavily
// weighted parameters, most significant first, end up in the best protected
// class. Each step down in significance costs decay.
type speechParam struct {
	size   int
	weight int
	decay  int
}

func repeatParams(n int, ps ...speechParam) []speechParam {
	var out []speechParam
	for i := 0; i < n; i++ {
		out = append(out, ps...)
	}
	return out
}

type rankedBit struct {
	index    int
	priority int
}

// rankBits returns the priority of every bit of params laid out one after
// the other. lsbFirst says the first bit of a parameter is its least
// significant one.
func rankBits(params []speechParam, lsbFirst bool) []rankedBit {
	var out []rankedBit
	for _, p := range params {
		for j := 0; j < p.size; j++ {
			rank := j
			if lsbFirst {
				rank = p.size - 1 - j
			}
			out = append(out, rankedBit{index: len(out), priority: p.weight - rank*p.decay})
		}
	}
	return out
}

// sortedIndices orders bits by descending priority, keeping the original
// order on ties.
func sortedIndices(ranked []rankedBit) []int {
	sorted := append([]rankedBit(nil), ranked...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].priority > sorted[b].priority })
	out := make([]int, len(sorted))
	for i, r := range sorted {
		out[i] = r.index
	}
	return out
}

// pin moves index v to position at of order.
func pin(order []int, v, at int) []int {
	out := make([]int, 0, len(order))
	for _, o := range order {
		if o != v {
			out = append(out, o)
		}
	}
	out = append(out[:at], append([]int{v}, out[at:]...)...)
	return out
}

// Full rate: eight log area ratios, then four subframes of LTP lag, LTP
// gain, grid position, block maximum and thirteen RPE pulses.
var frParams = append([]speechParam{
	{6, 100, 12}, {6, 99, 12}, {5, 98, 12}, {5, 97, 12},
	{4, 96, 12}, {4, 95, 12}, {3, 94, 12}, {3, 93, 12},
}, repeatParams(4, append([]speechParam{
	{7, 90, 10}, {2, 80, 10}, {2, 85, 20}, {6, 95, 10},
}, repeatParams(13, speechParam{3, 60, 20})...)...)...)

// frOrder[i] is the parameter bit carried by class-ordered bit d[i].
var frOrder = sortedIndices(rankBits(frParams, true))

// Half rate frames share their first 36 bits; the two MODE bits at 34 and
// 35 select the voiced or unvoiced layout of the rest.
var (
	hrCommon = []speechParam{
		{5, 100, 12}, {11, 98, 6}, {9, 96, 8}, {8, 94, 10}, {1, 70, 0}, {2, 200, 0},
	}
	hrUnvoicedParams = append(append([]speechParam(nil), hrCommon...),
		repeatParams(4, speechParam{7, 40, 4}, speechParam{7, 40, 4}, speechParam{5, 85, 12})...)
	hrVoicedParams = append(append(append([]speechParam(nil), hrCommon...),
		speechParam{8, 95, 8}, speechParam{9, 40, 4}, speechParam{5, 85, 12}),
		repeatParams(3, speechParam{4, 80, 10}, speechParam{9, 40, 4}, speechParam{5, 85, 12})...)
)

const (
	hrModeBit0 = 34
	hrModeBit1 = 35
	hrModeAt   = 93 // d position of the first MODE bit
)

func hrOrder(params []speechParam) []int {
	order := sortedIndices(rankBits(params, false))
	order = pin(order, hrModeBit0, hrModeAt)
	return pin(order, hrModeBit1, hrModeAt+1)
}

var (
	hrUnvoicedOrder = hrOrder(hrUnvoicedParams)
	hrVoicedOrder   = hrOrder(hrVoicedParams)
)

// hrOrderFor picks the layout from the two MODE bits.
func hrOrderFor(m0, m1 byte) []int {
	if m0 == 0 && m1 == 0 {
		return hrUnvoicedOrder
	}
	return hrVoicedOrder
}

// Enhanced full rate: five LPC indices, then subframes of pitch lag, pitch
// gain, 35 algebraic code bits and fixed codebook gain.
var efrParams = func() []speechParam {
	ps := []speechParam{{7, 100, 10}, {8, 99, 10}, {9, 98, 10}, {8, 97, 10}, {6, 96, 10}}
	for sf := 0; sf < 4; sf++ {
		lag := 9
		if sf%2 == 1 {
			lag = 6
		}
		ps = append(ps,
			speechParam{lag, 95, 8}, speechParam{4, 80, 15},
			speechParam{35, 40, 1}, speechParam{5, 85, 12})
	}
	return ps
}()

// efrRepeated are the s bits sent three times in w.
var efrRepeated = []int{69, 119, 172, 222}

const (
	efrWLen       = 260
	efrParityAt   = 252
	efrProtectLen = 65
)

var (
	efrRanked = rankBits(efrParams, false)

	// efrProtected lists the s bits covered by the 8 bit CRC, 0-based, in
	// the order they enter it.
	efrProtected = func() []int {
		out := make([]int, len(efrProtectedBits))
		for i, x := range efrProtectedBits {
			out[i] = x - 1
		}
		return out
	}()

	efrWMap = efrWToS()

	// efrOrder[i] is the w bit carried by class-ordered bit d[i].
	efrOrder = func() []int {
		prio := make([]rankedBit, efrWLen)
		for w, s := range efrWMap {
			p := 1000
			if s >= 0 {
				p = efrRanked[s].priority
			}
			prio[w] = rankedBit{index: w, priority: p}
		}
		return sortedIndices(prio)
	}()
)

// efrProtectedBits are the CRC protected bits of an EFR frame, numbered
// s1 to s244: the high LPC bits, the pitch lags and the upper fixed
// codebook gain bits.
var efrProtectedBits = [efrProtectLen]int{
	39, 40, 41, 42, 43, 44, 48, 87, 45, 2,
	3, 8, 10, 18, 19, 24, 46, 47, 142, 143,
	144, 145, 146, 147, 92, 93, 195, 196, 98, 137,
	148, 94, 197, 149, 150, 95, 198, 4, 5, 11,
	12, 16, 9, 6, 7, 13, 17, 20, 96, 199,
	1, 14, 15, 21, 25, 26, 28, 151, 201, 190,
	240, 88, 138, 191, 241,
}

// efrWToS returns the s bit behind every w position, -1 for parity bits.
func efrWToS() []int {
	out := make([]int, 0, efrWLen)
	s := 0
	for _, r := range efrRepeated {
		for ; s <= r+1; s++ {
			out = append(out, s)
		}
		out = append(out, r, r)
	}
	for ; s < 244; s++ {
		out = append(out, s)
	}
	for len(out) < efrWLen {
		out = append(out, -1)
	}
	return out
}
