package hashfile

import "fmt"

// spliceAfter inserts a new node at newOffset into the logical chain
// immediately after the node at predOffset, per spec.md §4.3's insert
// splice table. It returns the new node's own logic_prev/logic_next.
func (e *Engine) spliceAfter(predOffset, newOffset uint64) (logicPrev, logicNext uint64, err error) {
	p, err := e.readNodeHeader(predOffset)
	if err != nil {
		return 0, 0, err
	}

	succOffset := p.logicNext

	if succOffset == predOffset {
		// P was the bucket's sole logical element: P <-> N, both ways.
		p.logicNext = newOffset
		p.logicPrev = newOffset
		if err := e.writeNodeHeader(predOffset, p); err != nil {
			return 0, 0, err
		}
		return predOffset, predOffset, nil
	}

	s, err := e.readNodeHeader(succOffset)
	if err != nil {
		return 0, 0, err
	}

	p.logicNext = newOffset
	s.logicPrev = newOffset
	if err := e.writeNodeHeader(predOffset, p); err != nil {
		return 0, 0, err
	}
	if err := e.writeNodeHeader(succOffset, s); err != nil {
		return 0, 0, err
	}

	return predOffset, succOffset, nil
}

// insertLogical implements spec.md §4.3's insert splice: determine the new
// node's logical predecessor, find (or append) a physical slot for it, and
// splice it into the chain in the right place (empty bucket, after a
// matched predecessor, or at the logical tail).
func (e *Engine) insertLogical(slot uint64, key uint32, prev Matcher, value []byte) error {
	// The predecessor search runs first: an EOF append links the tail to a
	// node whose record is only written at the end of this function, so a
	// physical walk after the append would read past EOF.
	predOffset, predFound, err := e.findPhysicalPredecessor(slot, prev)
	if err != nil {
		return err
	}

	physSlot, err := e.locatePhysicalSlot(slot)
	if err != nil {
		return err
	}

	si, err := e.readSlotInfo(slot)
	if err != nil {
		return err
	}

	newOffset := physSlot.offset

	var logicPrev, logicNext uint64

	switch {
	case si.nodeCnt == 0:
		logicPrev, logicNext = newOffset, newOffset
		si.firstLogic = newOffset

	case predFound:
		logicPrev, logicNext, err = e.spliceAfter(predOffset, newOffset)
		if err != nil {
			return err
		}

	default:
		first, err := e.readNodeHeader(si.firstLogic)
		if err != nil {
			return err
		}
		tailOffset := first.logicPrev
		logicPrev, logicNext, err = e.spliceAfter(tailOffset, newOffset)
		if err != nil {
			return err
		}
	}

	newNode := nodeHeader{
		used:       true,
		key:        key,
		physicPrev: physSlot.physicPrev,
		physicNext: physSlot.physicNext,
		logicPrev:  logicPrev,
		logicNext:  logicNext,
	}
	if err := e.writeNodeHeader(newOffset, newNode); err != nil {
		return err
	}
	if err := e.writeNodeValue(newOffset, value); err != nil {
		return err
	}

	si.nodeCnt++
	return e.writeSlotInfo(slot, si)
}

// deleteLogical implements spec.md §4.3's delete splice: splice the node at
// dOffset out of bucket slot's logical chain, tombstone it, and zero its
// key and value. Its physical chain membership is untouched, so a later
// Add can recycle it.
func (e *Engine) deleteLogical(slot uint64, dOffset uint64) error {
	d, err := e.readNodeHeader(dOffset)
	if err != nil {
		return err
	}

	si, err := e.readSlotInfo(slot)
	if err != nil {
		return err
	}

	p, s := d.logicPrev, d.logicNext

	switch {
	case dOffset == p && dOffset == s:
		// D was the bucket's sole logical element.
		si.firstLogic = d.logicNext // == dOffset; the bucket is now empty

	default:
		if dOffset == si.firstLogic {
			si.firstLogic = d.logicNext
		}

		if p == s {
			pNode, err := e.readNodeHeader(p)
			if err != nil {
				return err
			}
			pNode.logicPrev = p
			pNode.logicNext = p
			if err := e.writeNodeHeader(p, pNode); err != nil {
				return err
			}
		} else {
			pNode, err := e.readNodeHeader(p)
			if err != nil {
				return err
			}
			sNode, err := e.readNodeHeader(s)
			if err != nil {
				return err
			}
			pNode.logicNext = s
			sNode.logicPrev = p
			if err := e.writeNodeHeader(p, pNode); err != nil {
				return err
			}
			if err := e.writeNodeHeader(s, sNode); err != nil {
				return err
			}
		}
	}

	d.used = false
	d.key = 0
	if err := e.writeNodeHeader(dOffset, d); err != nil {
		return err
	}
	if err := e.writeZeroValue(dOffset); err != nil {
		return err
	}

	if si.nodeCnt == 0 {
		return fmt.Errorf("slot %d: delete on a bucket already reporting zero live nodes: %w", slot, ErrCorrupt)
	}
	si.nodeCnt--
	return e.writeSlotInfo(slot, si)
}

func (e *Engine) writeZeroValue(off uint64) error {
	if e.layout.nodeValueSize == 0 {
		return nil
	}
	zero := make([]byte, e.layout.nodeValueSize)
	return e.writeNodeValue(off, zero)
}
