package codec

import "github.com/dbehnke/bts-codec/pkg/bits"

// USF precodes. Six bits protect the USF of CS-2 and CS-3 before the
// convolutional coder; twelve bits replace it in uncoded CS-4 and EGPRS
// blocks.
var (
	usf2six = [][]byte{
		{0, 0, 0, 0, 0, 0},
		{1, 0, 0, 1, 0, 1},
		{0, 1, 0, 1, 1, 0},
		{1, 1, 0, 0, 1, 1},
		{0, 0, 1, 0, 1, 1},
		{1, 0, 1, 1, 1, 0},
		{0, 1, 1, 1, 0, 1},
		{1, 1, 1, 0, 0, 0},
	}

	usf2twelve = [][]byte{
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{1, 1, 0, 1, 0, 0, 0, 0, 1, 0, 1, 1},
		{0, 0, 1, 1, 0, 1, 1, 1, 0, 0, 0, 1},
		{1, 1, 1, 0, 0, 1, 1, 1, 1, 0, 1, 0},
		{0, 0, 0, 0, 1, 1, 0, 1, 1, 1, 1, 0},
		{1, 1, 0, 1, 1, 1, 0, 1, 0, 1, 0, 1},
		{0, 0, 1, 1, 1, 0, 1, 0, 1, 1, 1, 1},
		{1, 1, 1, 0, 1, 0, 1, 0, 0, 1, 0, 0},
	}

	// 8PSK blocks repeat the twelve bit precode three times. Other stacks
	// use a dedicated 36 bit code and will read a different USF.
	usf2thirtysix = func() [][]byte {
		out := make([][]byte, len(usf2twelve))
		for i, c := range usf2twelve {
			for r := 0; r < 3; r++ {
				out[i] = append(out[i], c...)
			}
		}
		return out
	}()
)

// Stealing flag patterns (hl, hn of bursts 0 to 3) identifying the coding
// scheme of a GMSK PDTCH block, in the order CS-1, CS-2, CS-3, CS-4 and
// EGPRS GMSK.
var pdtchFlags = [][]byte{
	{1, 1, 1, 1, 1, 1, 1, 1},
	{1, 1, 0, 0, 1, 0, 0, 0},
	{0, 0, 1, 0, 0, 0, 0, 1},
	{0, 0, 0, 1, 0, 1, 1, 0},
	{0, 0, 0, 0, 0, 0, 0, 0},
}

// AMR in-band codewords for ids 0 to 3.
var (
	afsInBand = [][]byte{
		{0, 0, 0, 0, 0, 0, 0, 0},
		{1, 0, 1, 1, 1, 0, 1, 0},
		{0, 1, 0, 1, 1, 1, 0, 1},
		{1, 1, 1, 0, 0, 1, 1, 1},
	}

	ahsInBand = [][]byte{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{1, 1, 1, 0},
		{0, 1, 1, 1},
	}
)

// nearest returns the index of the candidate codeword closest to the
// received soft bits. Ties go to the lower index.
func nearest(candidates [][]byte, rx []int8) int {
	best, bestDist := 0, -1
	for i, c := range candidates {
		d := bits.HammingSoft(c, rx)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// nearestHard matches bits that have already been through the Viterbi
// decoder.
func nearestHard(candidates [][]byte, rx []byte) int {
	best, bestDist := 0, -1
	for i, c := range candidates {
		d := bits.Hamming(c, rx[:len(c)])
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
