package audit_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/audit"
)

func leaves(n int) []audit.Leaf {
	eventID := uuid.New()
	payer := uuid.New()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	out := make([]audit.Leaf, n)
	for i := range out {
		out[i] = audit.Leaf{
			ID:          uuid.New(),
			EventID:     eventID,
			PayerID:     payer,
			Amount:      decimal.NewFromInt(int64(10 + i)),
			Description: fmt.Sprintf("expense %d", i),
			CreatedAt:   start.Add(time.Duration(i) * time.Minute),
		}
	}

	return out
}

func TestTree_EveryLeafVerifies(t *testing.T) {
	for n := 1; n <= 9; n++ {
		t.Run(fmt.Sprintf("%dLeaves", n), func(t *testing.T) {
			ls := leaves(n)

			tree, err := audit.BuildFromLeaves(ls)
			require.NoError(t, err)
			require.Equal(t, n, tree.Len())

			root := tree.Root()

			for i, l := range ls {
				h, err := l.Hash()
				require.NoError(t, err)

				proof, err := tree.Proof(i)
				require.NoError(t, err)

				assert.True(t, audit.Verify(h, proof, root), "leaf %d", i)
			}
		})
	}
}

func TestTree_TamperedLeafFails(t *testing.T) {
	ls := leaves(5)

	tree, err := audit.BuildFromLeaves(ls)
	require.NoError(t, err)

	proof, err := tree.Proof(2)
	require.NoError(t, err)

	data, err := ls[2].Encode()
	require.NoError(t, err)

	for i := range data {
		tampered := make([]byte, len(data))
		copy(tampered, data)
		tampered[i] ^= 0x01

		assert.False(t, audit.Verify(audit.HashLeaf(tampered), proof, tree.Root()), "byte %d", i)
	}
}

func TestTree_TamperedProofFails(t *testing.T) {
	ls := leaves(7)

	tree, err := audit.BuildFromLeaves(ls)
	require.NoError(t, err)

	// Leaf 6 is the odd one out and gets paired with itself on the way up.
	for _, index := range []int{0, 3, 6} {
		h, err := ls[index].Hash()
		require.NoError(t, err)

		proof, err := tree.Proof(index)
		require.NoError(t, err)

		for s := range proof {
			for b := 0; b < len(proof[s].Sibling); b++ {
				tampered := make([]audit.Step, len(proof))
				copy(tampered, proof)
				tampered[s].Sibling[b] ^= 0x80

				assert.False(t, audit.Verify(h, tampered, tree.Root()))
			}
		}
	}
}

func TestTree_RootChangesOnInsert(t *testing.T) {
	ls := leaves(4)

	before, err := audit.BuildFromLeaves(ls[:3])
	require.NoError(t, err)

	after, err := audit.BuildFromLeaves(ls)
	require.NoError(t, err)

	assert.NotEqual(t, before.Root(), after.Root())
}

func TestTree_Empty(t *testing.T) {
	tree := audit.Build(nil)

	assert.True(t, tree.Root().IsZero())

	_, err := tree.Proof(0)
	assert.Error(t, err)
}

func TestLeaf_EncodingIsDeterministic(t *testing.T) {
	l := leaves(1)[0]

	local := l
	local.CreatedAt = l.CreatedAt.In(time.FixedZone("UTC+2", 2*60*60))
	local.Amount = decimal.RequireFromString(l.Amount.StringFixed(3))

	a, err := l.Hash()
	require.NoError(t, err)

	b, err := local.Hash()
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLeaf_HashSurvivesMicrosecondStorage(t *testing.T) {
	l := leaves(1)[0]
	l.CreatedAt = l.CreatedAt.Add(123456789 * time.Nanosecond)

	stored := l
	stored.CreatedAt = l.CreatedAt.Truncate(time.Microsecond)

	a, err := l.Hash()
	require.NoError(t, err)

	b, err := stored.Hash()
	require.NoError(t, err)

	assert.Equal(t, a, b)

	changed := stored
	changed.Amount = changed.Amount.Add(decimal.RequireFromString("0.01"))

	c, err := changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestParseHash(t *testing.T) {
	h := audit.HashLeaf([]byte("x"))

	parsed, err := audit.ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = audit.ParseHash("abcd")
	assert.Error(t, err)
}
