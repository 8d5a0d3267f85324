package parity

import (
	"bytes"
	"errors"
	"testing"
)

func agree() ([]byte, error)    { return []byte{1, 2, 3}, nil }
func disagree() ([]byte, error) { return []byte{9, 9, 9}, nil }

func TestLegacyOnlyRunsOnlyReference(t *testing.T) {
	r := NewRunner(LegacyOnly)
	called := false
	out, err := r.Run("op", func() ([]byte, error) {
		called = true
		return nil, nil
	}, agree)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("primary should not run in LegacyOnly mode")
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("out = %v, want reference's result", out)
	}
}

func TestRefactoredOnlyRunsOnlyPrimary(t *testing.T) {
	r := NewRunner(RefactoredOnly)
	called := false
	out, err := r.Run("op", agree, func() ([]byte, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("reference should not run in RefactoredOnly mode")
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("out = %v, want primary's result", out)
	}
}

func TestShadowAgreementKeepsMode(t *testing.T) {
	r := NewRunner(Shadow)
	out, err := r.Run("op", agree, agree)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("out = %v, want agreeing result", out)
	}
	if r.Divergences() != 0 {
		t.Errorf("divergences = %d, want 0", r.Divergences())
	}
	if r.Mode() != Shadow {
		t.Errorf("mode = %v, want Shadow (no divergence occurred)", r.Mode())
	}
}

func TestShadowDivergenceRevertsToLegacy(t *testing.T) {
	r := NewRunner(Shadow)
	out, err := r.Run("op", agree, disagree)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(out, []byte{9, 9, 9}) {
		t.Errorf("out = %v, want reference's result (Shadow trusts reference)", out)
	}
	if r.Divergences() != 1 {
		t.Errorf("divergences = %d, want 1", r.Divergences())
	}
	if r.Mode() != LegacyOnly {
		t.Errorf("mode = %v, want LegacyOnly after a divergence", r.Mode())
	}

	// A subsequent call should now run only the reference.
	primaryCalled := false
	_, err = r.Run("op", func() ([]byte, error) {
		primaryCalled = true
		return nil, nil
	}, agree)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if primaryCalled {
		t.Error("primary should not run after an auto-revert to LegacyOnly")
	}
}

func TestRefactoredPrimaryDivergenceDoesNotRevert(t *testing.T) {
	r := NewRunner(RefactoredPrimary)
	out, err := r.Run("op", agree, disagree)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("out = %v, want primary's result (RefactoredPrimary trusts primary)", out)
	}
	if r.Divergences() != 1 {
		t.Errorf("divergences = %d, want 1", r.Divergences())
	}
	if r.Mode() != RefactoredPrimary {
		t.Errorf("mode = %v, want RefactoredPrimary (no auto-revert outside Shadow)", r.Mode())
	}
}

func TestShadowErrorMismatchCountsAsDivergence(t *testing.T) {
	r := NewRunner(Shadow)
	boom := errors.New("boom")
	_, _ = r.Run("op", agree, func() ([]byte, error) { return nil, boom })
	if r.Divergences() != 1 {
		t.Errorf("divergences = %d, want 1", r.Divergences())
	}
}
