package hashfile

// Matcher decides whether a candidate node's value is the one a caller is
// looking for. It replaces the C callback `matches(existing, input_prev)`
// (spec.md §9 Design Notes) with a capability interface: implement Match to
// compare against whatever fields of the value your application cares
// about.
//
// Add uses a Matcher to find the physical predecessor after which a new
// node is logically inserted (nil means "insert at the logical tail").
// Delete uses a Matcher to find the logical node to remove (required, not
// optional — see Delete's doc comment).
//
// Implementations must be pure and side-effect free; Match may be called
// once per live node in a bucket and the search stops at the first match
// (spec.md's "first-match-wins" predecessor search, preserved exactly — see
// SPEC_FULL.md's Open Question 3).
type Matcher interface {
	Match(value []byte) bool
}

// MatcherFunc adapts a function to a Matcher.
type MatcherFunc func(value []byte) bool

// Match calls f.
func (f MatcherFunc) Match(value []byte) bool { return f(value) }

// BytesMatcher returns a Matcher that reports whether a node's value is
// byte-for-byte equal to want.
func BytesMatcher(want []byte) Matcher {
	return MatcherFunc(func(value []byte) bool {
		if len(value) != len(want) {
			return false
		}
		for i := range value {
			if value[i] != want[i] {
				return false
			}
		}
		return true
	})
}

// Action tells Traverse what to do with the node just visited. It replaces
// the C traversal callback's bitset return value (spec.md §9 Design Notes)
// with a closed enum, since the original bits are disjoint in practice.
type Action int

const (
	// ActionNone leaves the node untouched and continues the walk.
	ActionNone Action = iota

	// ActionUpdate writes Entry.Value (and Entry.Key) back to the node
	// just visited, then continues the walk.
	ActionUpdate

	// ActionDelete removes the node just visited from its bucket's
	// logical chain (as Delete would) and continues the walk.
	ActionDelete

	// ActionBreak stops the walk immediately without modifying the node
	// just visited.
	ActionBreak
)

// Entry is the mutable view of a node a Visitor is given during a
// traversal. Value is a fresh copy; mutating it and returning ActionUpdate
// writes the new value back, but the slice must stay exactly NodeValueSize
// bytes long.
type Entry struct {
	Key   uint32
	Value []byte
}

// Visitor is called once per live node a traversal visits. It replaces the
// C traversal callback (spec.md §9 Design Notes).
type Visitor interface {
	Visit(e *Entry) Action
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(e *Entry) Action

// Visit calls f.
func (f VisitorFunc) Visit(e *Entry) Action { return f(e) }

// ChainKind selects which of a bucket's two interwoven lists a traversal
// walks.
type ChainKind int

const (
	// Logical walks a bucket's live nodes in user-visible order.
	Logical ChainKind = iota

	// Physical walks every node in a bucket, live and tombstoned, in
	// append/reuse order.
	Physical
)

// AllSlots, passed as TraverseOptions.Slot or as Verify's slot argument, selects
// every bucket instead of one.
const AllSlots uint64 = ^uint64(0)

// TraverseOptions configures a single Traverse call.
type TraverseOptions struct {
	// By selects the physical or logical chain.
	By ChainKind

	// Slot restricts the walk to one bucket. Use AllSlots to walk every
	// bucket in ascending order.
	Slot uint64

	// OnTombstone, if set, is called for every tombstoned node a
	// Physical walk passes over (Logical walks never encounter
	// tombstones by construction). It is the hook a caller would use to
	// print or count dead slots; it cannot affect the walk.
	OnTombstone func(slot uint64, offset uint64)
}
