// Package hashfile implements a persistent, file-backed hash table engine
// with fixed-width records.
//
// Each bucket threads its nodes through two overlapping circular
// doubly-linked lists over the same on-disk records: a physical list (append
// and tombstone-reuse order, used to find a free slot) and a logical list
// (the order callers see when they traverse a bucket). There is no
// in-memory index beyond the small header/slot-directory cache held by an
// open [Engine]; every operation reads and writes the backing file directly.
//
// # Basic usage
//
//	e, err := hashfile.Open(hashfile.Options{
//	    Path:            "/tmp/playlist.hash",
//	    Mode:            hashfile.ModeOpenOrCreate,
//	    SlotCount:       64,
//	    NodeValueSize:   204,
//	    HeaderValueSize: 8,
//	})
//	if err != nil {
//	    // ErrCorrupt: delete and recreate with ModeRebuild.
//	}
//	defer e.Close()
//
//	err = e.Add(key, nil, value)
//	deleted, err := e.Delete(key, hashfile.BytesMatcher(value))
//
// # Concurrency
//
// hashfile assumes a single caller: there is no file locking between
// processes (each [Engine] method only holds an in-process mutex), and no
// crash-safety guarantees are offered beyond what a single fixed-width
// record write provides. See [Engine] for the exact contract.
//
// # Error handling
//
// Errors are classified by the sentinel values in this package ([ErrIO],
// [ErrCorrupt], [ErrNotFound], [ErrInvalid], [ErrClosed]). Callers should use
// [errors.Is] to classify a returned error; [ErrCorrupt] means the file
// should be recreated with [ModeRebuild], the rest are ordinary operational
// errors.
package hashfile
