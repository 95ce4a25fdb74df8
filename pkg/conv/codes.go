package conv

import "github.com/dbehnke/bts-codec/pkg/puncture"

// Generator polynomials, bit i holding the coefficient of D^i.
const (
	G0 uint32 = 0x19 // 1 + D3 + D4
	G1 uint32 = 0x1b // 1 + D + D3 + D4
	G2 uint32 = 0x15 // 1 + D2 + D4
	G3 uint32 = 0x1f // 1 + D + D2 + D3 + D4
	G4 uint32 = 0x6d // 1 + D2 + D3 + D5 + D6
	G5 uint32 = 0x53 // 1 + D + D4 + D6
	G6 uint32 = 0x5f // 1 + D + D2 + D3 + D4 + D6
	G7 uint32 = 0x4f // 1 + D + D2 + D3 + D6
)

func punct(total int, idx []int) puncture.Table {
	return puncture.MustFromIndices(total, idx)
}

// Control, packet and speech channel codes.
var (
	XCCH = MustNew(Params{Name: "xcch", K: 5, Len: 224, Polys: []uint32{G0, G1}})
	CS2  = MustNew(Params{Name: "cs2", K: 5, Len: 290, Polys: []uint32{G0, G1}, Puncture: puncture.CS2()})
	CS3  = MustNew(Params{Name: "cs3", K: 5, Len: 334, Polys: []uint32{G0, G1}, Puncture: puncture.CS3()})
	RACH = MustNew(Params{Name: "rach", K: 5, Len: 14, Polys: []uint32{G0, G1}})
	SCH  = MustNew(Params{Name: "sch", K: 5, Len: 35, Polys: []uint32{G0, G1}})

	TCHFR = MustNew(Params{Name: "tch_fr", K: 5, Len: 185, Polys: []uint32{G0, G1}})
	TCHHR = MustNew(Params{Name: "tch_hr", K: 7, Len: 98, Polys: []uint32{G4, G5, G6},
		Puncture: punct(312, tchHRPuncture)})
)

// AMR full rate speech codes. Every mode fills 448 coded bits.
var (
	AFS122 = MustNew(Params{Name: "tch_afs_12_2", K: 5, Len: 250, Polys: []uint32{G0, G1}, Feedback: G0,
		Puncture: punct(508, afs122Puncture)})
	AFS102 = MustNew(Params{Name: "tch_afs_10_2", K: 5, Len: 210, Polys: []uint32{G1, G2, G3}, Feedback: G3,
		Puncture: punct(642, afs102Puncture)})
	AFS795 = MustNew(Params{Name: "tch_afs_7_95", K: 7, Len: 165, Polys: []uint32{G4, G5, G6}, Feedback: G4,
		Puncture: punct(513, afs795Puncture)})
	AFS74 = MustNew(Params{Name: "tch_afs_7_4", K: 5, Len: 154, Polys: []uint32{G1, G2, G3}, Feedback: G3,
		Puncture: punct(474, afs74Puncture)})
	AFS67 = MustNew(Params{Name: "tch_afs_6_7", K: 5, Len: 140, Polys: []uint32{G1, G2, G3, G3}, Feedback: G3,
		Puncture: punct(576, afs67Puncture)})
	AFS59 = MustNew(Params{Name: "tch_afs_5_9", K: 7, Len: 124, Polys: []uint32{G4, G5, G6, G6}, Feedback: G6,
		Puncture: punct(520, afs59Puncture)})
	AFS515 = MustNew(Params{Name: "tch_afs_5_15", K: 5, Len: 109, Polys: []uint32{G1, G1, G2, G3, G3}, Feedback: G3,
		Puncture: punct(565, afs515Puncture)})
	AFS475 = MustNew(Params{Name: "tch_afs_4_75", K: 7, Len: 101, Polys: []uint32{G4, G4, G5, G6, G6}, Feedback: G6,
		Puncture: punct(535, afs475Puncture)})
)

// AMR half rate speech codes.
var (
	AHS795 = MustNew(Params{Name: "tch_ahs_7_95", K: 5, Len: 129, Polys: []uint32{G0, G1}, Feedback: G0,
		Puncture: punct(266, ahs795Puncture)})
	AHS74 = MustNew(Params{Name: "tch_ahs_7_4", K: 5, Len: 126, Polys: []uint32{G0, G1}, Feedback: G0,
		Puncture: punct(260, ahs74Puncture)})
	AHS67 = MustNew(Params{Name: "tch_ahs_6_7", K: 5, Len: 116, Polys: []uint32{G0, G1}, Feedback: G0,
		Puncture: punct(240, ahs67Puncture)})
	AHS59 = MustNew(Params{Name: "tch_ahs_5_9", K: 5, Len: 108, Polys: []uint32{G0, G1}, Feedback: G0,
		Puncture: punct(224, ahs59Puncture)})
	AHS515 = MustNew(Params{Name: "tch_ahs_5_15", K: 5, Len: 97, Polys: []uint32{G1, G2, G3}, Feedback: G3,
		Puncture: punct(303, ahs515Puncture)})
	AHS475 = MustNew(Params{Name: "tch_ahs_4_75", K: 7, Len: 89, Polys: []uint32{G4, G5, G6}, Feedback: G4,
		Puncture: punct(285, ahs475Puncture)})
)

var mcsPolys = []uint32{G4, G7, G5}

// EGPRS codes keep their rate with evenly spread puncturing. Only the P1
// pattern exists and the positions differ from the published tables.

func mcsData(name string, length, keep int) *Code {
	total := 3 * (length + 6)
	return MustNew(Params{Name: name, K: 7, Len: length, Polys: mcsPolys, Puncture: puncture.Uniform(total, keep)})
}

func mcsHeader(name string, length, keep int) *Code {
	total := 3 * length
	s := Params{Name: name, K: 7, Len: length, Polys: mcsPolys, Term: TailBiting}
	if keep < total {
		s.Puncture = puncture.Uniform(total, keep)
	}
	return MustNew(s)
}

// EGPRS data codes, one per modulation and coding scheme. The information
// length includes the 12 bit block check.
var (
	MCS1 = mcsData("mcs1", 190, 372)
	MCS2 = mcsData("mcs2", 238, 372)
	MCS3 = mcsData("mcs3", 310, 372)
	MCS4 = mcsData("mcs4", 366, 372)
	MCS5 = mcsData("mcs5", 462, 1248)
	MCS6 = mcsData("mcs6", 606, 1248)
	MCS7 = mcsData("mcs7", 462, 612)
	MCS8 = mcsData("mcs8", 558, 612)
	MCS9 = mcsData("mcs9", 606, 612)
)

// EGPRS RLC/MAC header codes, tail-biting, one per header type and link
// direction.
var (
	MCS1DLHeader = mcsHeader("mcs1_dl_hdr", 36, 68)
	MCS5DLHeader = mcsHeader("mcs5_dl_hdr", 33, 99)
	MCS7DLHeader = mcsHeader("mcs7_dl_hdr", 45, 124)
	MCS1ULHeader = mcsHeader("mcs1_ul_hdr", 39, 80)
	MCS5ULHeader = mcsHeader("mcs5_ul_hdr", 45, 135)
	MCS7ULHeader = mcsHeader("mcs7_ul_hdr", 54, 160)
)

// All lists every descriptor defined by the package.
func All() []*Code {
	return []*Code{
		XCCH, CS2, CS3, RACH, SCH, TCHFR, TCHHR,
		AFS122, AFS102, AFS795, AFS74, AFS67, AFS59, AFS515, AFS475,
		AHS795, AHS74, AHS67, AHS59, AHS515, AHS475,
		MCS1, MCS2, MCS3, MCS4, MCS5, MCS6, MCS7, MCS8, MCS9,
		MCS1DLHeader, MCS5DLHeader, MCS7DLHeader,
		MCS1ULHeader, MCS5ULHeader, MCS7ULHeader,
	}
}
