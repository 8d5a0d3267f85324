// Package merkle builds and verifies merkle trees over transaction hashes.
package merkle

import (
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// ComputeRoot calculates the merkle root of a list of leaf hashes.
//
// Algorithm:
//   - 0 hashes: returns zero hash
//   - 1 hash: returns that hash
//   - Otherwise: pairwise hash, duplicating the last element if odd count,
//     then recurse on the resulting layer until one hash remains.
func ComputeRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.Hash{}
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	// Work on a copy so we don't mutate the caller's slice.
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}

	return level[0]
}

// ProofStep is one sibling hash encountered on the path from a leaf to the
// root, tagged with which side it sits on.
type ProofStep struct {
	Sibling types.Hash
	// OnRight is true when Sibling is the right-hand operand of the
	// HashConcat at this level (i.e. our running hash is on the left).
	OnRight bool
}

// Proof is an inclusion proof for one leaf against a merkle root.
type Proof struct {
	LeafIndex int
	Steps     []ProofStep
}

// BuildProof constructs an inclusion proof for leaves[index].
// Returns false if index is out of range.
func BuildProof(leaves []types.Hash, index int) (Proof, bool) {
	if index < 0 || index >= len(leaves) {
		return Proof{}, false
	}
	if len(leaves) == 1 {
		return Proof{LeafIndex: index, Steps: nil}, true
	}

	level := make([]types.Hash, len(leaves))
	copy(level, leaves)
	pos := index

	var steps []ProofStep
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		var sib types.Hash
		var onRight bool
		if pos%2 == 0 {
			sib = level[pos+1]
			onRight = true
		} else {
			sib = level[pos-1]
			onRight = false
		}
		steps = append(steps, ProofStep{Sibling: sib, OnRight: onRight})

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
		pos /= 2
	}

	return Proof{LeafIndex: index, Steps: steps}, true
}

// VerifyProof recomputes the root from leaf and proof and compares to root.
func VerifyProof(leaf types.Hash, proof Proof, root types.Hash) bool {
	running := leaf
	for _, step := range proof.Steps {
		if step.OnRight {
			running = crypto.HashConcat(running, step.Sibling)
		} else {
			running = crypto.HashConcat(step.Sibling, running)
		}
	}
	return running == root
}
