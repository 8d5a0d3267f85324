package problem

import (
	"context"
	"testing"
)

func TestDefaultRegistry_GenerateDispatchesByKind(t *testing.T) {
	r := NewDefaultRegistry()
	seed := [32]byte{0x01}

	p, err := r.Generate(SubsetSum, seed, 2)
	if err != nil {
		t.Fatalf("Generate(SubsetSum): %v", err)
	}
	if p.Kind() != SubsetSum {
		t.Errorf("Kind() = %v, want SubsetSum", p.Kind())
	}

	if _, err := r.Generate(Kind(99), seed, 2); err != ErrUnknownKind {
		t.Errorf("Generate(unknown): err = %v, want ErrUnknownKind", err)
	}
}

func TestDefaultRegistry_VerifySubsetSumEndToEnd(t *testing.T) {
	r := NewDefaultRegistry()
	seed := [32]byte{0x02}

	p, err := r.Generate(SubsetSum, seed, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, ok := r.Solve(ctx, p)
	if !ok {
		t.Fatal("expected Solve to find the planted solution")
	}

	if !r.Verify(p, s, Budget{MaxOps: 10_000_000, MaxMemoryBytes: 1 << 20}) {
		t.Error("expected the solved solution to verify true")
	}
}

func TestDefaultRegistry_SATAndTSPScaffoldedNotEnabled(t *testing.T) {
	r := NewDefaultRegistry()
	seed := [32]byte{0x03}

	satProblem, err := r.Generate(SAT, seed, 1)
	if err != nil {
		t.Fatalf("Generate(SAT): %v", err)
	}
	ctx := context.Background()
	if _, ok := r.Solve(ctx, satProblem); ok {
		t.Error("SAT Solve must report no solution while scaffolded")
	}

	tspProblem, err := r.Generate(TSP, seed, 1)
	if err != nil {
		t.Fatalf("Generate(TSP): %v", err)
	}
	if _, ok := r.Solve(ctx, tspProblem); ok {
		t.Error("TSP Solve must report no solution while scaffolded")
	}

	if _, err := VerifySAT(satProblem.(*SATProblem), &SATSolution{}, Budget{}); err != ErrScaffoldDisabled {
		t.Errorf("VerifySAT err = %v, want ErrScaffoldDisabled", err)
	}
	if _, err := VerifyTSP(tspProblem.(*TSPProblem), &TSPSolution{}, Budget{}); err != ErrScaffoldDisabled {
		t.Errorf("VerifyTSP err = %v, want ErrScaffoldDisabled", err)
	}
}

func TestOpCounter_StopsAtBudget(t *testing.T) {
	c := NewOpCounter(3)
	for i := 0; i < 3; i++ {
		if !c.Tick() {
			t.Fatalf("Tick %d should have been allowed", i)
		}
	}
	if c.Tick() {
		t.Error("Tick beyond the budget should be refused")
	}
	if !c.Exceeded() {
		t.Error("Exceeded should be true once the budget is spent")
	}
}
