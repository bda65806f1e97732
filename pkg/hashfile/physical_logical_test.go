package hashfile_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalbhor/plhash/pkg/hashfile"
)

func value(b byte, size int) []byte {
	v := make([]byte, size)
	v[0] = b
	return v
}

func Test_Add_Into_Empty_Bucket_Then_Traverse_Logical_Sees_One_Node(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Add(1, nil, value(1, int(opts.NodeValueSize))))

	var seen []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 1}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		seen = entry.Value
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, value(1, int(opts.NodeValueSize)), seen)
}

func Test_Add_Appends_At_Logical_Tail_By_Default(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	slot := uint64(0)

	// Three keys sharing bucket 0: 0, 4, 8 with SlotCount=4.
	require.NoError(t, e.Add(0, nil, value(10, size)))
	require.NoError(t, e.Add(4, nil, value(20, size)))
	require.NoError(t, e.Add(8, nil, value(30, size)))

	var order []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: slot}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		order = append(order, entry.Value[0])
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, []byte{10, 20, 30}, order)
}

func Test_Add_Inserts_After_Matched_Predecessor(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)

	require.NoError(t, e.Add(0, nil, value(10, size)))
	require.NoError(t, e.Add(4, nil, value(20, size)))
	// Insert 30 right after the node holding value 10, not at the tail.
	require.NoError(t, e.Add(8, hashfile.BytesMatcher(value(10, size)), value(30, size)))

	var order []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		order = append(order, entry.Value[0])
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, []byte{10, 30, 20}, order)
}

func Test_Delete_Removes_Matched_Node_And_Recycles_Its_Slot(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)

	require.NoError(t, e.Add(0, nil, value(10, size)))
	require.NoError(t, e.Add(4, nil, value(20, size)))

	found, err := e.Delete(0, hashfile.BytesMatcher(value(10, size)))
	require.NoError(t, err)
	require.True(t, found)

	n, err := e.SlotNodeCount(0)
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)

	before, err := os.Stat(opts.Path)
	require.NoError(t, err)

	// Re-add should reuse the tombstoned slot rather than growing the file.
	require.NoError(t, e.Add(8, nil, value(30, size)))

	after, err := os.Stat(opts.Path)
	require.NoError(t, err)
	require.Equal(t, before.Size(), after.Size())

	var order []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		order = append(order, entry.Value[0])
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, []byte{20, 30}, order)
}

func Test_Delete_Returns_False_When_No_Match(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	found, err := e.Delete(1, hashfile.BytesMatcher(value(99, int(opts.NodeValueSize))))
	require.NoError(t, err)
	require.False(t, found)
}

func Test_Delete_Returns_ErrInvalid_When_Match_Nil(t *testing.T) {
	t.Parallel()

	e, err := hashfile.Open(testOptions(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Delete(1, nil)
	require.ErrorIs(t, err, hashfile.ErrInvalid)
}

func Test_Delete_All_Nodes_Collapses_Bucket_To_Empty(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	require.NoError(t, e.Add(0, nil, value(1, size)))

	found, err := e.Delete(0, hashfile.BytesMatcher(value(1, size)))
	require.NoError(t, err)
	require.True(t, found)

	empty, err := e.SlotEmpty(0)
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, e.Verify(hashfile.AllSlots))
}

func Test_Traverse_ActionDelete_Removes_Node_Mid_Walk(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	require.NoError(t, e.Add(0, nil, value(10, size)))
	require.NoError(t, e.Add(4, nil, value(20, size)))
	require.NoError(t, e.Add(8, nil, value(30, size)))

	var visited []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		visited = append(visited, entry.Value[0])
		if entry.Value[0] == 20 {
			return hashfile.ActionDelete
		}
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, []byte{10, 20, 30}, visited)

	n, err := e.SlotNodeCount(0)
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)

	var remaining []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		remaining = append(remaining, entry.Value[0])
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, []byte{10, 30}, remaining)
}

// Test_Traverse_ActionDelete_Of_Every_Node_Collapses_Bucket pins spec.md
// §4.4's "visitor deletes every visited node" boundary case: deleting the
// bucket's current logical head must not desync the walk from the rest of
// the chain, since deleteLogical moves si.firstLogic to exactly the
// offset the walk was about to advance to next.
func Test_Traverse_ActionDelete_Of_Every_Node_Collapses_Bucket(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	require.NoError(t, e.Add(0, nil, value(10, size)))
	require.NoError(t, e.Add(4, nil, value(20, size)))
	require.NoError(t, e.Add(8, nil, value(30, size)))

	var visited []byte
	broke, err := e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		visited = append(visited, entry.Value[0])
		return hashfile.ActionDelete
	}))
	require.NoError(t, err)
	require.False(t, broke)
	require.Equal(t, []byte{10, 20, 30}, visited)

	n, err := e.SlotNodeCount(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)

	var remaining []byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		remaining = append(remaining, entry.Value[0])
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Empty(t, remaining)
	require.NoError(t, e.Verify(0))
}

// Test_Add_Returns_ErrAlloc_When_Appending_Would_Exceed_Max_File_Size pins
// ErrAlloc's documented trigger (appendPhysicalNode growing the file past
// maxFileSize) by sparse-truncating the file to just under the limit
// instead of actually writing that much data.
func Test_Add_Returns_ErrAlloc_When_Appending_Would_Exceed_Max_File_Size(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	// Occupies bucket 0's anchor, so the next Add to that bucket must
	// append a fresh node at EOF rather than reuse it.
	require.NoError(t, e.Add(0, nil, value(10, size)))

	require.NoError(t, hashfile.TruncateFileForTesting(e, hashfile.MaxFileSizeForTesting-8))

	err = e.Add(4, nil, value(20, size))
	require.Error(t, err)
	require.ErrorIs(t, err, hashfile.ErrAlloc)
}

func Test_Traverse_ActionBreak_Stops_Walk(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	require.NoError(t, e.Add(0, nil, value(10, size)))
	require.NoError(t, e.Add(4, nil, value(20, size)))

	var visited int
	broke, err := e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		visited++
		return hashfile.ActionBreak
	}))
	require.NoError(t, err)
	require.True(t, broke)
	require.Equal(t, 1, visited)
}

func Test_Traverse_ActionUpdate_Rewrites_Value(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	require.NoError(t, e.Add(0, nil, value(10, size)))

	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		entry.Value[0] = 99
		return hashfile.ActionUpdate
	}))
	require.NoError(t, err)

	var seen byte
	_, err = e.Traverse(hashfile.TraverseOptions{By: hashfile.Logical, Slot: 0}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		seen = entry.Value[0]
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, byte(99), seen)
}

func Test_Traverse_Physical_Visits_Tombstones_Via_OnTombstone(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	require.NoError(t, e.Add(0, nil, value(10, size)))
	_, err = e.Delete(0, hashfile.BytesMatcher(value(10, size)))
	require.NoError(t, err)

	var tombstones int
	_, err = e.Traverse(hashfile.TraverseOptions{
		By:   hashfile.Physical,
		Slot: 0,
		OnTombstone: func(slot, offset uint64) {
			tombstones++
		},
	}, hashfile.VisitorFunc(func(entry *hashfile.Entry) hashfile.Action {
		return hashfile.ActionNone
	}))
	require.NoError(t, err)
	require.Equal(t, 1, tombstones)
}

func Test_Verify_Passes_On_A_Freshly_Created_File(t *testing.T) {
	t.Parallel()

	e, err := hashfile.Open(testOptions(t))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Verify(hashfile.AllSlots))
}

func Test_Verify_Passes_After_Interleaved_Add_Delete(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	e, err := hashfile.Open(opts)
	require.NoError(t, err)
	defer e.Close()

	size := int(opts.NodeValueSize)
	for i := uint32(0); i < 20; i++ {
		require.NoError(t, e.Add(i, nil, value(byte(i), size)))
	}
	for i := uint32(0); i < 20; i += 3 {
		_, err := e.Delete(i, hashfile.BytesMatcher(value(byte(i), size)))
		require.NoError(t, err)
	}
	for i := uint32(100); i < 110; i++ {
		require.NoError(t, e.Add(i, nil, value(byte(i), size)))
	}

	require.NoError(t, e.Verify(hashfile.AllSlots))
}
