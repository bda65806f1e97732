package hashfile

// Implementation limits. These are not spec.md requirements, just the
// bounds this implementation enforces: Options.validate checks the first
// two, appendPhysicalNode checks maxFileSize. Walks over a corrupt file are
// bounded separately, from the file size, by Engine.physicalWalkBound.
const (
	// maxSlotCount bounds Options.SlotCount. A hash table with more
	// buckets than this is almost certainly a misconfiguration, not a
	// real workload.
	maxSlotCount = 1 << 24

	// maxNodeValueSize bounds Options.NodeValueSize and
	// Options.HeaderValueSize. Large enough for any reasonable
	// fixed-width payload, small enough that a corrupt size field can't
	// make an allocation absurd.
	maxNodeValueSize = 1 << 20

	// maxFileSize bounds how large appendPhysicalNode will let the file
	// grow. A bucket that needs more than this to hold its live nodes has
	// almost certainly lost a tombstone somewhere (a Delete bug leaking
	// physical slots) rather than a genuine workload; appendPhysicalNode
	// returns ErrAlloc instead of growing past it.
	maxFileSize = 1 << 40
)
