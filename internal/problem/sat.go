package problem

import (
	"context"

	"github.com/coinjecture/coinjecture/pkg/codec"
)

// SATProblem is a scaffolded 3-SAT instance: Clauses of three signed
// literals each (a positive literal is 1-indexed into Variables; its
// negation is the same index negated). Not wired into consensus — see
// Registry.Verify.
//
// TODO: no golden vector set exists yet for this variant (open question
// in the reference material); wiring Verify into consensus acceptance
// must wait until one is published.
type SATProblem struct {
	Variables uint32
	Clauses   [][3]int32
	Timestamp int64
}

func (p *SATProblem) Kind() Kind { return SAT }

// Encode returns the canonical wire encoding.
func (p *SATProblem) Encode() []byte {
	e := codec.NewEncoder(16 + 12*len(p.Clauses))
	e.WriteUint8(uint8(SAT))
	e.WriteUint32(p.Variables)
	e.WriteSeqHeader(len(p.Clauses))
	for _, c := range p.Clauses {
		e.WriteInt64(int64(c[0]))
		e.WriteInt64(int64(c[1]))
		e.WriteInt64(int64(c[2]))
	}
	e.WriteInt64(p.Timestamp)
	return e.Bytes()
}

// SATSolution is a scaffolded variable assignment (true/false per variable,
// 1-indexed to match SATProblem.Clauses literals).
type SATSolution struct {
	Assignment []bool
	Timestamp  int64
}

func (s *SATSolution) Kind() Kind { return SAT }

// Encode returns the canonical wire encoding.
func (s *SATSolution) Encode() []byte {
	e := codec.NewEncoder(8 + len(s.Assignment))
	e.WriteUint8(uint8(SAT))
	e.WriteSeqHeader(len(s.Assignment))
	for _, v := range s.Assignment {
		if v {
			e.WriteUint8(1)
		} else {
			e.WriteUint8(0)
		}
	}
	e.WriteInt64(s.Timestamp)
	return e.Bytes()
}

// GenerateSAT produces a scaffolded instance. Deterministic in shape only
// (variable/clause counts derived from tier); clause content is not yet
// grounded in a published golden vector set.
func GenerateSAT(seed [32]byte, tier uint32) *SATProblem {
	vars := 8 + tier*2
	return &SATProblem{Variables: vars}
}

// SolveSAT is unimplemented: the variant is scaffolded, not enabled.
func SolveSAT(ctx context.Context, p *SATProblem) (Solution, bool) {
	return nil, false
}

// VerifySAT always answers false, wrapped in ErrScaffoldDisabled's meaning
// for callers that want to distinguish this from a genuinely invalid
// assignment. See Registry.Verify.
func VerifySAT(p *SATProblem, s *SATSolution, budget Budget) (bool, error) {
	return false, ErrScaffoldDisabled
}
