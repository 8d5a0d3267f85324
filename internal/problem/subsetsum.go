package problem

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/coinjecture/coinjecture/pkg/codec"
)

// subsetSumElementRange bounds the magnitude of generated elements so that
// a planted solution's running sum cannot itself approach i64 overflow
// before Verify's own range check ever gets exercised.
const subsetSumElementRange = 1 << 40

// SubsetSumProblem is a subset-sum instance: find a strictly-increasing
// index sequence into Elements whose values sum to Target.
type SubsetSumProblem struct {
	Tier      uint32
	Elements  []int64
	Target    int64
	Timestamp int64
}

func (p *SubsetSumProblem) Kind() Kind { return SubsetSum }

// Encode returns the canonical wire encoding: problem_type tag, tier,
// element count + values, target, timestamp.
func (p *SubsetSumProblem) Encode() []byte {
	e := codec.NewEncoder(16 + 8*len(p.Elements))
	e.WriteUint8(uint8(SubsetSum))
	e.WriteUint32(p.Tier)
	e.WriteSeqHeader(len(p.Elements))
	for _, v := range p.Elements {
		e.WriteInt64(v)
	}
	e.WriteInt64(p.Target)
	e.WriteInt64(p.Timestamp)
	return e.Bytes()
}

// DecodeSubsetSumProblem strict-decodes a SubsetSumProblem, rejecting a
// mismatched problem_type tag and any trailing bytes.
func DecodeSubsetSumProblem(b []byte) (*SubsetSumProblem, error) {
	d := codec.NewDecoder(b)
	tag, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	if Kind(tag) != SubsetSum {
		return nil, ErrUnknownKind
	}
	p := &SubsetSumProblem{}
	if p.Tier, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	n, err := d.ReadSeqHeader()
	if err != nil {
		return nil, err
	}
	p.Elements = make([]int64, n)
	for i := range p.Elements {
		if p.Elements[i], err = d.ReadInt64(); err != nil {
			return nil, err
		}
	}
	if p.Target, err = d.ReadInt64(); err != nil {
		return nil, err
	}
	if p.Timestamp, err = d.ReadInt64(); err != nil {
		return nil, err
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return p, nil
}

// SubsetSumSolution claims that the elements at Indices (into the Problem
// this solution answers) sum to the problem's target.
type SubsetSumSolution struct {
	Indices   []uint32
	Timestamp int64
}

func (s *SubsetSumSolution) Kind() Kind { return SubsetSum }

// Encode returns the canonical wire encoding.
func (s *SubsetSumSolution) Encode() []byte {
	e := codec.NewEncoder(12 + 4*len(s.Indices))
	e.WriteUint8(uint8(SubsetSum))
	e.WriteSeqHeader(len(s.Indices))
	for _, idx := range s.Indices {
		e.WriteUint32(idx)
	}
	e.WriteInt64(s.Timestamp)
	return e.Bytes()
}

// DecodeSubsetSumSolution strict-decodes a SubsetSumSolution.
func DecodeSubsetSumSolution(b []byte) (*SubsetSumSolution, error) {
	d := codec.NewDecoder(b)
	tag, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	if Kind(tag) != SubsetSum {
		return nil, ErrUnknownKind
	}
	n, err := d.ReadSeqHeader()
	if err != nil {
		return nil, err
	}
	s := &SubsetSumSolution{Indices: make([]uint32, n)}
	for i := range s.Indices {
		if s.Indices[i], err = d.ReadUint32(); err != nil {
			return nil, err
		}
	}
	if s.Timestamp, err = d.ReadInt64(); err != nil {
		return nil, err
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return s, nil
}

// elementCountForTier grows the instance size with tier, the same way the
// difficulty target grows the work-score requirement — a higher tier means
// a larger search space, not a different algorithm.
func elementCountForTier(tier uint32) int {
	n := 8 + int(tier)*4
	if n > 256 {
		n = 256
	}
	return n
}

// expand derives a deterministic byte stream from seed via counter-mode
// SHA-256, the same construction used elsewhere in the core wherever a
// long pseudorandom sequence must be reproducible byte-for-byte across
// nodes without carrying an RNG's internal state across the wire.
func expand(seed [32]byte, counter uint32, out []byte) {
	var buf [36]byte
	copy(buf[:32], seed[:])
	binary.LittleEndian.PutUint32(buf[32:], counter)
	h := sha256.Sum256(buf[:])
	copy(out, h[:])
}

// GenerateSubsetSum derives a subset-sum instance deterministically from
// seed and tier, planting a solution (a pseudorandom subset of the
// generated elements) so the instance is guaranteed solvable.
func GenerateSubsetSum(seed [32]byte, tier uint32) *SubsetSumProblem {
	n := elementCountForTier(tier)
	elements := make([]int64, n)
	for i := 0; i < n; i++ {
		var digest [32]byte
		expand(seed, uint32(i), digest[:])
		v := int64(binary.LittleEndian.Uint64(digest[:8]) % subsetSumElementRange)
		if v == 0 {
			v = 1
		}
		elements[i] = v
	}

	var planted [32]byte
	expand(seed, uint32(n), planted[:])
	var target int64
	for i := 0; i < n; i++ {
		if planted[i%32]&(1<<(uint(i)%8)) != 0 {
			target += elements[i]
		}
	}
	if target == 0 {
		// Guarantee at least one planted element so the instance is never
		// trivially solved by the empty set (disallowed: |indices| >= 1).
		target = elements[0]
	}

	return &SubsetSumProblem{
		Tier:     tier,
		Elements: elements,
		Target:   target,
	}
}

// SolveSubsetSum attempts a bounded depth-first search for an index set
// summing to the target, honoring ctx cancellation. This is best-effort and
// not consensus-critical: a miner that cannot find a solution in time
// simply yields its turn.
func SolveSubsetSum(ctx context.Context, p *SubsetSumProblem) (Solution, bool) {
	n := len(p.Elements)
	indices := make([]uint32, 0, n)

	var search func(start int, remaining int64) []uint32
	checkInterval := 0
	search = func(start int, remaining int64) []uint32 {
		if remaining == 0 && len(indices) > 0 {
			out := make([]uint32, len(indices))
			copy(out, indices)
			return out
		}
		if start >= n || remaining < 0 {
			return nil
		}
		checkInterval++
		if checkInterval%4096 == 0 {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}
		indices = append(indices, uint32(start))
		if r := search(start+1, remaining-p.Elements[start]); r != nil {
			return r
		}
		indices = indices[:len(indices)-1]
		return search(start+1, remaining)
	}

	found := search(0, p.Target)
	if found == nil {
		return nil, false
	}
	return &SubsetSumSolution{Indices: found}, true
}

// VerifySubsetSum checks s against p under budget. It is a pure,
// deterministic function of its arguments: no wall-clock, no allocation
// beyond the bound the budget already admits.
func VerifySubsetSum(p *SubsetSumProblem, s *SubsetSumSolution, budget Budget) bool {
	ok, _, _ := VerifySubsetSumCost(p, s, budget)
	return ok
}

// VerifySubsetSumCost runs the same check as VerifySubsetSum but also
// returns the op count consumed and the estimated working-set size, used
// by internal/commitreveal as the hardware-independent stand-in for
// "measured verify time/space" — an actual wall-clock or RSS measurement
// would vary across nodes and could never enter consensus scoring.
func VerifySubsetSumCost(p *SubsetSumProblem, s *SubsetSumSolution, budget Budget) (ok bool, opsUsed, memBytes uint64) {
	memBytes = uint64(len(p.Elements))*8 + uint64(len(s.Indices))*4
	if len(s.Indices) == 0 {
		return false, 0, memBytes
	}
	if memBytes > budget.MaxMemoryBytes {
		return false, 0, memBytes
	}

	ops := NewOpCounter(budget.MaxOps)
	var sum int64
	var prev int64 = -1
	for _, idx := range s.Indices {
		if !ops.Tick() {
			return false, ops.Ops(), memBytes
		}
		if int64(idx) <= prev {
			return false, ops.Ops(), memBytes // not strictly increasing
		}
		prev = int64(idx)
		if int(idx) >= len(p.Elements) {
			return false, ops.Ops(), memBytes
		}

		if !ops.Tick() {
			return false, ops.Ops(), memBytes
		}
		v := p.Elements[idx]
		// Saturating range-checked add: reject rather than overflow.
		if v > 0 && sum > maxInt64-v {
			return false, ops.Ops(), memBytes
		}
		if v < 0 && sum < minInt64-v {
			return false, ops.Ops(), memBytes
		}
		sum += v

		if !ops.Tick() {
			return false, ops.Ops(), memBytes
		}
	}

	if !ops.Tick() {
		return false, ops.Ops(), memBytes
	}
	return sum == p.Target, ops.Ops(), memBytes
}

const (
	maxInt64 = 1<<63 - 1
	minInt64 = -1 << 63
)
