package audit

import (
	"fmt"
)

// Step is one level of an inclusion proof. Left is true when Sibling sits
// to the left of the running hash.
type Step struct {
	Sibling Hash `json:"sibling"`
	Left    bool `json:"left"`
}

// Tree is a binary hash tree over leaf hashes in insertion order. A level
// with an odd number of nodes pairs its last node with itself.
type Tree struct {
	levels [][]Hash
}

// Build constructs the tree over the given leaf hashes.
func Build(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}

	level := make([]Hash, len(leaves))
	copy(level, leaves)

	levels := [][]Hash{level}

	for len(level) > 1 {
		next := make([]Hash, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}

			next[i/2] = hashPair(level[i], right)
		}

		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}
}

// BuildFromLeaves hashes and builds in one go.
func BuildFromLeaves(leaves []Leaf) (*Tree, error) {
	hashes := make([]Hash, len(leaves))

	for i, l := range leaves {
		h, err := l.Hash()
		if err != nil {
			return nil, err
		}

		hashes[i] = h
	}

	return Build(hashes), nil
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	if len(t.levels) == 0 {
		return 0
	}

	return len(t.levels[0])
}

// Root returns the tree's root, or the zero hash for an empty tree.
func (t *Tree) Root() Hash {
	if len(t.levels) == 0 {
		return Hash{}
	}

	return t.levels[len(t.levels)-1][0]
}

// Proof returns the sibling path from leaf index to the root.
func (t *Tree) Proof(index int) ([]Step, error) {
	if index < 0 || index >= t.Len() {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", index, t.Len())
	}

	proof := make([]Step, 0, len(t.levels)-1)

	for _, level := range t.levels[:len(t.levels)-1] {
		var step Step

		if index%2 == 0 {
			sibling := index + 1
			if sibling >= len(level) {
				sibling = index
			}

			step = Step{Sibling: level[sibling]}
		} else {
			step = Step{Sibling: level[index-1], Left: true}
		}

		proof = append(proof, step)
		index /= 2
	}

	return proof, nil
}

// Verify recombines leaf with proof and compares the result to root.
func Verify(leaf Hash, proof []Step, root Hash) bool {
	current := leaf

	for _, step := range proof {
		if step.Left {
			current = hashPair(step.Sibling, current)
		} else {
			current = hashPair(current, step.Sibling)
		}
	}

	return current == root
}
