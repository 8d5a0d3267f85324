package commitreveal

import "math/bits"

// ScaleDenom is the fixed-point base every WorkScore term is expressed in:
// a value v is carried on the wire and in memory as v*ScaleDenom, the same
// PPM-style convention the fee split uses.
const ScaleDenom uint64 = 1_000_000

// ScoreTable pins the weighting constants a block's work score is computed
// against. K documents the formula's denominator exponent shape; the
// implementation itself rescales after every pairwise multiply rather than
// dividing once by ScaleDenom^K at the end (see ComputeWorkScore).
type ScoreTable struct {
	K            uint32
	ProblemWeight uint64 // fixed-point, ScaleDenom == 1.0
	SizeFactor    uint64
	QualityScore  uint64
}

// ScoreTableV1 is the pinned weighting in force since genesis. All three
// weights are neutral (1.0 at ScaleDenom fixed point): the instance's own
// size and the canonical verify cost are the only real inputs to the score,
// nothing here thumbs the scale toward a particular problem shape yet.
var ScoreTableV1 = ScoreTable{
	K:             2,
	ProblemWeight: 1_000_000,
	SizeFactor:    1_000_000,
	QualityScore:  1_000_000,
}

// WorkScore is the fully-decomposed result of ComputeWorkScore, kept around
// so a block explorer or the parity harness can show how a score arose
// without recomputing every intermediate term.
type WorkScore struct {
	TimeAsymmetry   uint64
	SpaceAsymmetry  uint64
	EnergyEfficiency uint64
	Score           uint64
}

// mulDivScaled computes a*b/ScaleDenom without overflowing uint64, the same
// full-width-multiply-then-divide idiom the fee split uses: a and b are
// each fixed-point numbers at ScaleDenom scale, and the result is their
// product rescaled back down to ScaleDenom scale.
func mulDivScaled(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, ScaleDenom)
	return q
}

// scaledRatio computes floor(num*ScaleDenom/den) without overflowing
// uint64, turning a plain integer ratio into a ScaleDenom-scale fixed-point
// number.
func scaledRatio(num, den uint64) uint64 {
	hi, lo := bits.Mul64(num, ScaleDenom)
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// scaledSqrtRatio computes floor(sqrt(num/den) * ScaleDenom) via
// isqrt(num*ScaleDenom^2/den), so that taking an integer square root of a
// ratio still lands back on ScaleDenom fixed-point scale instead of
// sqrt(ScaleDenom) scale.
func scaledSqrtRatio(num, den uint64) uint64 {
	hi, lo := bits.Mul64(num, ScaleDenom*ScaleDenom)
	q, _ := bits.Div64(hi, lo, den)
	return isqrt(q)
}

func max1(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}

// isqrt returns floor(sqrt(n)) using integer Newton's method — no
// floating point, no math/big, so the result is bit-identical on every
// architecture a node might run on.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// ComputeWorkScore derives a block's work score from quantities computable
// purely from the problem instance and the canonical (op-count, memory-byte)
// verify cost — never from a real measured solve or verify duration, which
// would vary across hardware and could never be allowed into consensus
// scoring. problemSize is the instance's element/variable/city count;
// verifyOps and verifyMemBytes come from the registry's Verify*Cost call.
//
// time_asymmetry approximates how much cheaper verifying is than the
// instance's own size suggests solving must have been: a larger instance
// verified at the same op cost scores higher. space_asymmetry does the same
// for the solution's working-set footprint, taking an integer square root
// the way the canonical formula calls for. energy_efficiency has no
// hardware-independent proxy available, so it is carried as the neutral
// multiplier (ScaleDenom) until a deterministic energy proxy is specified.
func ComputeWorkScore(problemSize, verifyOps, verifyMemBytes uint64, table ScoreTable) WorkScore {
	timeAsymmetry := scaledRatio(problemSize, max1(verifyOps))
	spaceAsymmetry := scaledSqrtRatio(problemSize*8, max1(verifyMemBytes))
	energyEfficiency := ScaleDenom

	score := timeAsymmetry
	score = mulDivScaled(score, spaceAsymmetry)
	score = mulDivScaled(score, table.ProblemWeight)
	score = mulDivScaled(score, table.SizeFactor)
	score = mulDivScaled(score, table.QualityScore)
	score = mulDivScaled(score, energyEfficiency)

	return WorkScore{
		TimeAsymmetry:    timeAsymmetry,
		SpaceAsymmetry:   spaceAsymmetry,
		EnergyEfficiency: energyEfficiency,
		Score:            score,
	}
}
