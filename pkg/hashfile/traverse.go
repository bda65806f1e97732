package hashfile

import "fmt"

// Traverse walks one bucket (or every bucket, with opts.Slot == AllSlots)
// along opts.By, calling v.Visit once per live node. It implements
// spec.md §4.4: Visit's returned Action can update a node's value in
// place, delete it, or stop the walk early; a Physical walk also exposes
// tombstoned nodes via opts.OnTombstone.
//
// Traverse reports whether the walk was stopped early by ActionBreak.
//
// A Logical walk captures each node's successor before visiting it and
// counts down from the bucket's live-node count at the start of the walk,
// rather than watching for the walk to circle back to its starting point —
// deleting the bucket's current first logical node moves si.firstLogic to
// that very successor, so a "have we returned to the head" check would
// false-positive on the very next step. See spec.md §4.4's re-anchoring
// note and SPEC_FULL.md's Open Question 2 for why this state lives on the
// stack here, not on Engine.
func (e *Engine) Traverse(opts TraverseOptions, v Visitor) (broke bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return false, err
	}
	if v == nil {
		return false, fmt.Errorf("visitor is required: %w", ErrInvalid)
	}

	if opts.Slot < uint64(e.layout.slotCount) {
		return e.traverseSlot(opts.Slot, opts, v)
	}

	for slot := uint64(0); slot < uint64(e.layout.slotCount); slot++ {
		broke, err := e.traverseSlot(slot, opts, v)
		if err != nil {
			return false, err
		}
		if broke {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) traverseSlot(slot uint64, opts TraverseOptions, v Visitor) (bool, error) {
	if opts.By == Physical {
		return e.traversePhysical(slot, opts, v)
	}
	return e.traverseLogical(slot, v)
}

func (e *Engine) traversePhysical(slot uint64, opts TraverseOptions, v Visitor) (bool, error) {
	anchor := e.anchorOffset(slot)
	bound, err := e.physicalWalkBound()
	if err != nil {
		return false, err
	}

	cur := anchor
	for steps := uint64(0); ; steps++ {
		if steps > bound {
			return false, fmt.Errorf("slot %d: physical chain did not close: %w", slot, ErrCorrupt)
		}

		n, err := e.readNodeHeader(cur)
		if err != nil {
			return false, err
		}
		next := n.physicNext // physical pointers never move under a delete, so this is safe to capture up front

		if !n.used {
			if opts.OnTombstone != nil {
				opts.OnTombstone(slot, cur)
			}
		} else {
			broke, err := e.visitNode(slot, cur, n, v)
			if err != nil {
				return false, err
			}
			if broke {
				return true, nil
			}
		}

		if next == anchor {
			return false, nil
		}
		cur = next
	}
}

func (e *Engine) traverseLogical(slot uint64, v Visitor) (bool, error) {
	si, err := e.readSlotInfo(slot)
	if err != nil {
		return false, err
	}
	if si.nodeCnt == 0 {
		return false, nil
	}

	// remaining counts down the nodes that were live when the walk began.
	// A walk never encounters more live nodes than that (deletes only
	// shrink the chain, nothing is inserted mid-walk), so this is both the
	// loop bound and the termination condition — it replaces comparing
	// `next` against a freshly re-read si.firstLogic, which is wrong
	// whenever the deleted node was the bucket's current logical head:
	// deleteLogical sets the new firstLogic to exactly the pre-delete
	// next, making that comparison true one node too early.
	remaining := si.nodeCnt
	cur := si.firstLogic

	for remaining > 0 {
		n, err := e.readNodeHeader(cur)
		if err != nil {
			return false, err
		}
		if !n.used {
			return false, fmt.Errorf("slot %d: tombstone %d found in logical chain: %w", slot, cur, ErrCorrupt)
		}

		next := n.logicNext

		broke, _, err := e.visitNodeLogical(slot, cur, n, v)
		if err != nil {
			return false, err
		}
		if broke {
			return true, nil
		}

		remaining--
		cur = next
	}

	return false, nil
}

// visitNode runs a Physical-walk visit: ActionDelete and ActionUpdate are
// applied, ActionBreak is reported to the caller.
func (e *Engine) visitNode(slot, offset uint64, n nodeHeader, v Visitor) (broke bool, err error) {
	broke, _, err = e.visit(slot, offset, n, v)
	return broke, err
}

// visitNodeLogical runs a Logical-walk visit. Unlike visitNode, which drops
// it, it returns visit's deleted flag too; traverseLogical doesn't need the
// deleted flag itself since its successor pointer is captured up front.
func (e *Engine) visitNodeLogical(slot, offset uint64, n nodeHeader, v Visitor) (broke, deleted bool, err error) {
	return e.visit(slot, offset, n, v)
}

func (e *Engine) visit(slot, offset uint64, n nodeHeader, v Visitor) (broke, deleted bool, err error) {
	val, err := e.readNodeValue(offset)
	if err != nil {
		return false, false, err
	}

	entry := &Entry{Key: n.key, Value: append([]byte(nil), val...)}
	action := v.Visit(entry)

	switch action {
	case ActionUpdate:
		if uint32(len(entry.Value)) != e.layout.nodeValueSize {
			return false, false, fmt.Errorf("visitor returned a value of %d bytes, want %d: %w", len(entry.Value), e.layout.nodeValueSize, ErrInvalid)
		}
		n.key = entry.Key
		if err := e.writeNodeHeader(offset, n); err != nil {
			return false, false, err
		}
		if err := e.writeNodeValue(offset, entry.Value); err != nil {
			return false, false, err
		}
		return false, false, nil

	case ActionDelete:
		if err := e.deleteLogical(slot, offset); err != nil {
			return false, false, err
		}
		return false, true, nil

	case ActionBreak:
		return true, false, nil

	default:
		return false, false, nil
	}
}
