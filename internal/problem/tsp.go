package problem

import (
	"context"

	"github.com/coinjecture/coinjecture/pkg/codec"
)

// TSPProblem is a scaffolded traveling-salesman instance over an explicit
// distance matrix. Not wired into consensus — see Registry.Verify.
//
// TODO: no golden vector set exists yet for this variant; wiring Verify
// into consensus acceptance must wait until one is published.
type TSPProblem struct {
	Cities    uint32
	Distances []int64 // row-major Cities x Cities matrix
	MaxTour   int64
	Timestamp int64
}

func (p *TSPProblem) Kind() Kind { return TSP }

// Encode returns the canonical wire encoding.
func (p *TSPProblem) Encode() []byte {
	e := codec.NewEncoder(24 + 8*len(p.Distances))
	e.WriteUint8(uint8(TSP))
	e.WriteUint32(p.Cities)
	e.WriteSeqHeader(len(p.Distances))
	for _, d := range p.Distances {
		e.WriteInt64(d)
	}
	e.WriteInt64(p.MaxTour)
	e.WriteInt64(p.Timestamp)
	return e.Bytes()
}

// TSPSolution is a scaffolded city visitation order (a permutation of
// 0..Cities-1).
type TSPSolution struct {
	Order     []uint32
	Timestamp int64
}

func (s *TSPSolution) Kind() Kind { return TSP }

// Encode returns the canonical wire encoding.
func (s *TSPSolution) Encode() []byte {
	e := codec.NewEncoder(12 + 4*len(s.Order))
	e.WriteUint8(uint8(TSP))
	e.WriteSeqHeader(len(s.Order))
	for _, v := range s.Order {
		e.WriteUint32(v)
	}
	e.WriteInt64(s.Timestamp)
	return e.Bytes()
}

// GenerateTSP produces a scaffolded instance. Deterministic in shape only
// (city count derived from tier); distance matrix content is not yet
// grounded in a published golden vector set.
func GenerateTSP(seed [32]byte, tier uint32) *TSPProblem {
	cities := 4 + tier
	return &TSPProblem{Cities: cities}
}

// SolveTSP is unimplemented: the variant is scaffolded, not enabled.
func SolveTSP(ctx context.Context, p *TSPProblem) (Solution, bool) {
	return nil, false
}

// VerifyTSP always answers false, wrapped in ErrScaffoldDisabled's meaning
// for callers that want to distinguish this from a genuinely invalid tour.
// See Registry.Verify.
func VerifyTSP(p *TSPProblem, s *TSPSolution, budget Budget) (bool, error) {
	return false, ErrScaffoldDisabled
}
