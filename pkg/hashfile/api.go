package hashfile

import "fmt"

// bucket returns the slot a key belongs to, per spec.md's bucketing rule
// key % slot_cnt.
func (e *Engine) bucket(key uint32) uint64 {
	return uint64(key) % uint64(e.layout.slotCount)
}

// Add inserts a new node for key with the given value into its bucket.
//
// prev selects where the node lands in the bucket's logical order: if
// non-nil, Add walks the bucket's physical chain for the first live node
// prev.Match accepts and inserts the new node immediately after it; if
// prev is nil, or no node matches, the new node is appended at the
// logical tail. value must be exactly Options.NodeValueSize bytes.
//
// Add never reports "already exists": spec.md's engine has no uniqueness
// constraint on keys, mirroring a hash table with external chaining where
// duplicate keys are a caller-level concept, not an engine one.
func (e *Engine) Add(key uint32, prev Matcher, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	if uint32(len(value)) != e.layout.nodeValueSize {
		return fmt.Errorf("value is %d bytes, want %d: %w", len(value), e.layout.nodeValueSize, ErrInvalid)
	}

	return e.insertLogical(e.bucket(key), key, prev, value)
}

// Delete removes the first live node in key's bucket whose value
// match.Match accepts, searching in logical order.
//
// Delete returns (false, nil) when no node matches — spec.md §7 classifies
// a missing key as non-fatal, not an error condition, so callers that don't
// care whether a delete actually removed anything can ignore the bool and
// just check err.
func (e *Engine) Delete(key uint32, match Matcher) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return false, err
	}
	if match == nil {
		return false, fmt.Errorf("match is required: %w", ErrInvalid)
	}

	slot := e.bucket(key)

	si, err := e.readSlotInfo(slot)
	if err != nil {
		return false, err
	}
	if si.nodeCnt == 0 {
		return false, nil
	}

	start := si.firstLogic
	cur := start

	for steps := uint32(0); steps < si.nodeCnt; steps++ {
		n, err := e.readNodeHeader(cur)
		if err != nil {
			return false, err
		}
		if !n.used {
			return false, fmt.Errorf("slot %d: tombstone %d found in logical chain: %w", slot, cur, ErrCorrupt)
		}

		val, err := e.readNodeValue(cur)
		if err != nil {
			return false, err
		}

		if match.Match(val) {
			if err := e.deleteLogical(slot, cur); err != nil {
				return false, err
			}
			return true, nil
		}

		next := n.logicNext
		if next == start {
			return false, nil
		}
		cur = next
	}

	return false, fmt.Errorf("slot %d: logical chain longer than node_cnt %d: %w", slot, si.nodeCnt, ErrCorrupt)
}
