package hashfile_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kalbhor/plhash/pkg/hashfile"
	"github.com/kalbhor/plhash/pkg/hashfile/model"
)

// Test_Engine_Matches_Model_Over_Random_Operations applies the same
// sequence of Add/Delete calls to a real Engine and an in-memory model.File
// and compares every bucket's logical order at the end. This is the
// model-vs-real metamorphic check spec.md §8 calls for.
func Test_Engine_Matches_Model_Over_Random_Operations(t *testing.T) {
	t.Parallel()

	const (
		slotCount     = 4
		nodeValueSize = 16
		steps         = 400
	)

	opts := testOptions(t)
	opts.SlotCount = slotCount
	opts.NodeValueSize = nodeValueSize

	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	m := model.New(slotCount)

	rng := rand.New(rand.NewSource(1))

	valueFor := func(tag string) []byte {
		v := make([]byte, nodeValueSize)
		copy(v, tag)
		return v
	}

	type liveEntry struct {
		key uint32
		tag string
	}
	var live []liveEntry

	for i := 0; i < steps; i++ {
		if len(live) == 0 || rng.Intn(3) < 2 {
			key := uint32(rng.Intn(slotCount * 3))
			tag := fmt.Sprintf("v%d", i)

			var engineMatcher hashfile.Matcher
			var modelMatch func(string) bool
			if len(live) > 0 && rng.Intn(2) == 0 {
				target := live[rng.Intn(len(live))].tag
				engineMatcher = hashfile.BytesMatcher(valueFor(target))
				modelMatch = func(v string) bool { return v == target }
			}

			require.NoError(t, e.Add(key, engineMatcher, valueFor(tag)))
			m.Add(key, modelMatch, tag)
			live = append(live, liveEntry{key: key, tag: tag})
			continue
		}

		idx := rng.Intn(len(live))
		victim := live[idx]

		found, err := e.Delete(victim.key, hashfile.BytesMatcher(valueFor(victim.tag)))
		require.NoError(t, err)
		require.True(t, found)

		removed := m.Delete(victim.key, func(v string) bool { return v == victim.tag })
		require.True(t, removed)

		live = append(live[:idx], live[idx+1:]...)
	}

	require.NoError(t, e.Verify(hashfile.AllSlots))

	for slot := uint64(0); slot < slotCount; slot++ {
		var engineLogical []model.Entry
		_, err := e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: slot}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
			engineLogical = append(engineLogical, model.Entry{Key: entry.Key, Value: string(trimZero(entry.Value))})
			return hashfile.ActionNone
		}))
		require.NoError(t, err)

		wantLogical := m.Buckets[slot].LogicalOrder()
		if diff := cmp.Diff(wantLogical, engineLogical); diff != "" {
			t.Fatalf("slot %d logical order mismatch (-want +got):\n%s", slot, diff)
		}
	}
}

func trimZero(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return b[:i]
}
