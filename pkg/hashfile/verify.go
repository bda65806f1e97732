package hashfile

import "fmt"

// Verify walks bucket slot (or every bucket, with slot == AllSlots)
// checking the invariants spec.md §3 depends on, without mutating
// anything: the physical chain closes back on its anchor, every live
// node's key maps to this bucket (key % SlotCount == slot), every node's
// physic_next neighbor points back to it through physic_prev, every live
// node's logic_next neighbor points back to it through logic_prev, and the
// bucket's live node count agrees with its directory entry's node_cnt.
//
// It is the engine-level analog of the original playlist layer's
// check_playlist: a corruption detector a caller can run proactively,
// separate from the corruption errors Open/Add/Delete/Traverse return when
// they stumble onto a broken chain mid-operation.
func (e *Engine) Verify(slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}

	if slot < uint64(e.layout.slotCount) {
		return e.verifySlot(slot)
	}

	for s := uint64(0); s < uint64(e.layout.slotCount); s++ {
		if err := e.verifySlot(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) verifySlot(slot uint64) error {
	anchor := e.anchorOffset(slot)
	bound, err := e.physicalWalkBound()
	if err != nil {
		return err
	}

	si, err := e.readSlotInfo(slot)
	if err != nil {
		return err
	}

	var liveSeen uint32
	cur := anchor

	for steps := uint64(0); ; steps++ {
		if steps > bound {
			return fmt.Errorf("slot %d: physical chain did not close: %w", slot, ErrCorrupt)
		}

		n, err := e.readNodeHeader(cur)
		if err != nil {
			return err
		}

		next, err := e.readNodeHeader(n.physicNext)
		if err != nil {
			return err
		}
		if next.physicPrev != cur {
			return fmt.Errorf("slot %d: node %d physic_next %d does not point back (got physic_prev %d): %w",
				slot, cur, n.physicNext, next.physicPrev, ErrCorrupt)
		}

		if n.used {
			liveSeen++

			if e.bucket(n.key) != slot {
				return fmt.Errorf("slot %d: node %d has key %d, which maps to slot %d: %w",
					slot, cur, n.key, e.bucket(n.key), ErrCorrupt)
			}

			ln, err := e.readNodeHeader(n.logicNext)
			if err != nil {
				return err
			}
			if ln.logicPrev != cur {
				return fmt.Errorf("slot %d: node %d logic_next %d does not point back (got logic_prev %d): %w",
					slot, cur, n.logicNext, ln.logicPrev, ErrCorrupt)
			}
		}

		if n.physicNext == anchor {
			break
		}
		cur = n.physicNext
	}

	if liveSeen != si.nodeCnt {
		return fmt.Errorf("slot %d: counted %d live nodes, directory says %d: %w", slot, liveSeen, si.nodeCnt, ErrCorrupt)
	}
	return nil
}
