package hashfile

import "fmt"

// physicalSlot describes where a new node's record should be written, and
// the physical-chain pointers (if any) the caller must leave unchanged.
type physicalSlot struct {
	offset     uint64
	physicPrev uint64
	physicNext uint64
	reused     bool // true: offset is a recycled tombstone/virgin anchor, its physic_prev/physic_next are unchanged
}

// locatePhysicalSlot implements spec.md §4.2: walk bucket slot's physical
// chain starting at its anchor looking for a node with used == false
// (either the virgin anchor itself, or a tombstone left by Delete). If the
// walk reaches the tail (a live node whose physic_next loops back to the
// anchor) without finding one, a fresh node is spliced onto the end of the
// chain at EOF.
func (e *Engine) locatePhysicalSlot(slot uint64) (physicalSlot, error) {
	anchor := e.anchorOffset(slot)
	bound, err := e.physicalWalkBound()
	if err != nil {
		return physicalSlot{}, err
	}

	cur := anchor
	for steps := uint64(0); ; steps++ {
		if steps > bound {
			return physicalSlot{}, fmt.Errorf("slot %d: physical chain did not close: %w", slot, ErrCorrupt)
		}

		n, err := e.readNodeHeader(cur)
		if err != nil {
			return physicalSlot{}, err
		}

		if !n.used {
			return physicalSlot{offset: cur, physicPrev: n.physicPrev, physicNext: n.physicNext, reused: true}, nil
		}

		if n.physicNext == anchor {
			// cur is the physical tail; append a fresh node at EOF.
			return e.appendPhysicalNode(slot, anchor, cur, n)
		}

		cur = n.physicNext
	}
}

// appendPhysicalNode splices a new node at EOF onto the tail of a
// bucket's physical chain: tail.physic_next and anchor.physic_prev both
// move to point at it. The new node's own header is written by the caller
// once the logical splice pointers are known (spec.md §4.2's "write N
// later along with its logical fields").
func (e *Engine) appendPhysicalNode(slot, anchor, tail uint64, tailNode nodeHeader) (physicalSlot, error) {
	newOffset, err := e.fileSize()
	if err != nil {
		return physicalSlot{}, err
	}

	if newOffset+e.layout.nodeSize > maxFileSize {
		return physicalSlot{}, fmt.Errorf("slot %d: appending would grow the file past %d bytes: %w", slot, uint64(maxFileSize), ErrAlloc)
	}

	tailNode.physicNext = newOffset
	if err := e.writeNodeHeader(tail, tailNode); err != nil {
		return physicalSlot{}, err
	}

	anchorNode, err := e.readNodeHeader(anchor)
	if err != nil {
		return physicalSlot{}, err
	}
	anchorNode.physicPrev = newOffset
	if err := e.writeNodeHeader(anchor, anchorNode); err != nil {
		return physicalSlot{}, err
	}

	return physicalSlot{offset: newOffset, physicPrev: tail, physicNext: anchor, reused: false}, nil
}

// findPhysicalPredecessor implements the predecessor half of Add: a
// first-match-wins walk of the bucket's physical chain (so reused
// tombstones are visible to later callers the same way a freshly appended
// node would be) looking for the live node prev.Match accepts. A nil prev
// means "no predecessor search, insert at the logical tail".
func (e *Engine) findPhysicalPredecessor(slot uint64, prev Matcher) (offset uint64, found bool, err error) {
	if prev == nil {
		return 0, false, nil
	}

	anchor := e.anchorOffset(slot)
	bound, err := e.physicalWalkBound()
	if err != nil {
		return 0, false, err
	}

	cur := anchor
	for steps := uint64(0); ; steps++ {
		if steps > bound {
			return 0, false, fmt.Errorf("slot %d: physical chain did not close: %w", slot, ErrCorrupt)
		}

		n, err := e.readNodeHeader(cur)
		if err != nil {
			return 0, false, err
		}

		if n.used {
			val, err := e.readNodeValue(cur)
			if err != nil {
				return 0, false, err
			}
			if prev.Match(val) {
				return cur, true, nil
			}
		}

		if n.physicNext == anchor {
			return 0, false, nil
		}
		cur = n.physicNext
	}
}
