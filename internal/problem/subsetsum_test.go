package problem

import (
	"context"
	"testing"
)

func TestSubsetSum_EncodeDecode_Roundtrip(t *testing.T) {
	p := &SubsetSumProblem{Tier: 2, Elements: []int64{1, 2, 3, 4, 5}, Target: 9, Timestamp: 100}
	decoded, err := DecodeSubsetSumProblem(p.Encode())
	if err != nil {
		t.Fatalf("DecodeSubsetSumProblem: %v", err)
	}
	if decoded.Tier != p.Tier || decoded.Target != p.Target || decoded.Timestamp != p.Timestamp {
		t.Errorf("scalar fields mismatch: got %+v, want %+v", decoded, p)
	}
	if len(decoded.Elements) != len(p.Elements) {
		t.Fatalf("elements length = %d, want %d", len(decoded.Elements), len(p.Elements))
	}
	for i := range p.Elements {
		if decoded.Elements[i] != p.Elements[i] {
			t.Errorf("element[%d] = %d, want %d", i, decoded.Elements[i], p.Elements[i])
		}
	}

	s := &SubsetSumSolution{Indices: []uint32{0, 2, 4}, Timestamp: 7}
	decodedSol, err := DecodeSubsetSumSolution(s.Encode())
	if err != nil {
		t.Fatalf("DecodeSubsetSumSolution: %v", err)
	}
	if decodedSol.Timestamp != s.Timestamp || len(decodedSol.Indices) != len(s.Indices) {
		t.Errorf("solution mismatch: got %+v, want %+v", decodedSol, s)
	}
}

func TestDecodeSubsetSumProblem_RejectsWrongTag(t *testing.T) {
	p := &SATProblem{Variables: 4}
	if _, err := DecodeSubsetSumProblem(p.Encode()); err == nil {
		t.Error("expected tag mismatch rejection")
	}
}

// Scenario from the reference verification example: elements=[1,2,3,4,5],
// target=9, indices=[0,2,4] (1+3+5=9) verifies true; indices=[0,1] (1+2=3)
// verifies false.
func TestVerifySubsetSum_ReferenceScenario(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3, 4, 5}, Target: 9}
	budget := Budget{MaxOps: 100_000, MaxMemoryBytes: 1 << 20}

	valid := &SubsetSumSolution{Indices: []uint32{0, 2, 4}}
	if !VerifySubsetSum(p, valid, budget) {
		t.Error("expected valid solution to verify true")
	}

	invalid := &SubsetSumSolution{Indices: []uint32{0, 1}}
	if VerifySubsetSum(p, invalid, budget) {
		t.Error("expected sum-mismatch solution to verify false")
	}
}

func TestVerifySubsetSum_SingleElementMatchingTarget(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{42}, Target: 42}
	budget := Budget{MaxOps: 1000, MaxMemoryBytes: 1 << 20}
	s := &SubsetSumSolution{Indices: []uint32{0}}
	if !VerifySubsetSum(p, s, budget) {
		t.Error("expected single-index exact match to verify true")
	}
}

func TestVerifySubsetSum_RejectsEmptyIndices(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3}, Target: 0}
	budget := Budget{MaxOps: 1000, MaxMemoryBytes: 1 << 20}
	s := &SubsetSumSolution{Indices: nil}
	if VerifySubsetSum(p, s, budget) {
		t.Error("expected empty index set to verify false even if target is 0")
	}
}

func TestVerifySubsetSum_RejectsNonIncreasingIndices(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3}, Target: 3}
	budget := Budget{MaxOps: 1000, MaxMemoryBytes: 1 << 20}

	duplicate := &SubsetSumSolution{Indices: []uint32{0, 0}}
	if VerifySubsetSum(p, duplicate, budget) {
		t.Error("expected duplicate indices to verify false")
	}

	descending := &SubsetSumSolution{Indices: []uint32{1, 0}}
	if VerifySubsetSum(p, descending, budget) {
		t.Error("expected non-increasing indices to verify false")
	}
}

func TestVerifySubsetSum_RejectsOutOfBoundsIndex(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3}, Target: 1}
	budget := Budget{MaxOps: 1000, MaxMemoryBytes: 1 << 20}
	s := &SubsetSumSolution{Indices: []uint32{5}}
	if VerifySubsetSum(p, s, budget) {
		t.Error("expected out-of-bounds index to verify false")
	}
}

func TestVerifySubsetSum_RejectsOverOpBudget(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3, 4, 5}, Target: 9}
	tooSmall := Budget{MaxOps: 1, MaxMemoryBytes: 1 << 20}
	s := &SubsetSumSolution{Indices: []uint32{0, 2, 4}}
	if VerifySubsetSum(p, s, tooSmall) {
		t.Error("expected an exhausted op budget to verify false regardless of correctness")
	}
}

func TestVerifySubsetSum_RejectsOverMemoryBudget(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3, 4, 5}, Target: 9}
	tooSmall := Budget{MaxOps: 100_000, MaxMemoryBytes: 1}
	s := &SubsetSumSolution{Indices: []uint32{0, 2, 4}}
	if VerifySubsetSum(p, s, tooSmall) {
		t.Error("expected an exhausted memory budget to verify false")
	}
}

func TestVerifySubsetSum_Deterministic(t *testing.T) {
	p := &SubsetSumProblem{Elements: []int64{1, 2, 3, 4, 5}, Target: 9}
	budget := Budget{MaxOps: 100_000, MaxMemoryBytes: 1 << 20}
	s := &SubsetSumSolution{Indices: []uint32{0, 2, 4}}
	first := VerifySubsetSum(p, s, budget)
	for i := 0; i < 10; i++ {
		if VerifySubsetSum(p, s, budget) != first {
			t.Fatal("VerifySubsetSum must be a deterministic function of its inputs alone")
		}
	}
}

func TestGenerateSubsetSum_PlantedSolutionVerifies(t *testing.T) {
	seed := [32]byte{0x01, 0x02, 0x03}
	p := GenerateSubsetSum(seed, 3)

	if len(p.Elements) == 0 {
		t.Fatal("expected a nonempty element set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sol, ok := SolveSubsetSum(ctx, p)
	if !ok {
		t.Fatal("expected a planted solution to be found")
	}

	budget := Budget{MaxOps: 10_000_000, MaxMemoryBytes: 1 << 20}
	if !VerifySubsetSum(p, sol.(*SubsetSumSolution), budget) {
		t.Error("planted solution must verify true")
	}
}

func TestGenerateSubsetSum_Deterministic(t *testing.T) {
	seed := [32]byte{0xAA, 0xBB}
	p1 := GenerateSubsetSum(seed, 5)
	p2 := GenerateSubsetSum(seed, 5)

	if p1.Target != p2.Target || len(p1.Elements) != len(p2.Elements) {
		t.Fatal("GenerateSubsetSum must be deterministic given the same seed and tier")
	}
	for i := range p1.Elements {
		if p1.Elements[i] != p2.Elements[i] {
			t.Errorf("element[%d] differs across identical-seed generations", i)
		}
	}
}
