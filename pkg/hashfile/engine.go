package hashfile

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kalbhor/plhash/internal/fsx"
)

// Engine is an open hash file. It holds a single long-lived file handle and
// the small amount of header state spec.md allows caching in memory (the
// format header's fixed fields); bucket directory entries and node records
// are always read from and written to the file directly, never cached.
//
// Engine is not safe for concurrent use: every exported method takes an
// internal mutex so concurrent calls from multiple goroutines will not
// corrupt the file, but they will serialize and a Visitor/Matcher callback
// must not call back into the same Engine while its caller holds that
// mutex (see the package doc's concurrency note).
type Engine struct {
	mu sync.Mutex

	fs   fsx.FS
	file fsx.File
	path string

	layout layout
	closed bool
}

// Open opens or creates a hash file per opts.Mode. It returns ErrInvalid
// for a malformed Options, ErrIO for a filesystem failure, and ErrCorrupt
// if an existing file's header fails validation (bad magic, unsupported
// version, bad checksum, or a SlotCount/NodeValueSize/HeaderValueSize that
// disagrees with opts).
func Open(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	fs := opts.FS
	if fs == nil {
		fs = fsx.NewReal()
	}

	if opts.Mode == ModeRebuild {
		if err := fs.Remove(opts.Path); err != nil {
			return nil, fmt.Errorf("rebuild: remove %s: %w", opts.Path, errors.Join(err, ErrIO))
		}
	}

	lay := computeLayout(opts.SlotCount, opts.HeaderValueSize, opts.NodeValueSize)

	_, statErr := fs.Stat(opts.Path)
	switch {
	case statErr == nil:
		// Existing file: ModeOpenOrCreate leaves it untouched; open it.
	case os.IsNotExist(statErr):
		if err := createImage(fs, opts.Path, lay); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("stat %s: %w", opts.Path, errors.Join(statErr, ErrIO))
	}

	f, err := fs.OpenFile(opts.Path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, errors.Join(err, ErrIO))
	}

	e := &Engine{fs: fs, file: f, path: opts.Path, layout: lay}

	if err := e.validateHeader(opts); err != nil {
		_ = f.Close()
		return nil, err
	}

	return e, nil
}

// createImage builds the initial header + slot directory + header data +
// anchor nodes image in memory and writes it atomically, so a crash
// mid-creation never leaves a partially-initialized file for a later Open
// to misread as corrupt.
func createImage(fs fsx.FS, path string, lay layout) error {
	buf := make([]byte, lay.slotCountBound)

	h := fileHeader{
		slotCount:       lay.slotCount,
		headerValueSize: lay.headerValueSize,
		nodeValueSize:   lay.nodeValueSize,
	}
	copy(buf[0:headerSize], encodeHeader(h))

	for slot := uint64(0); slot < uint64(lay.slotCount); slot++ {
		anchor := lay.anchorOffset(slot)
		si := slotDirEntry{nodeCnt: 0, firstLogic: anchor}
		copy(buf[lay.slotInfoOffset(slot):], encodeSlotInfo(si))

		n := nodeHeader{
			used:       false,
			physicPrev: anchor,
			physicNext: anchor,
			logicPrev:  anchor,
			logicNext:  anchor,
		}
		copy(buf[anchor:], encodeNodeHeader(n))
	}

	if err := fs.WriteFileAtomic(path, buf, 0o644); err != nil {
		return fmt.Errorf("create %s: %w", path, errors.Join(err, ErrIO))
	}
	return nil
}

// validateHeader reads back the on-disk header and confirms it matches the
// shape the caller asked for.
func (e *Engine) validateHeader(opts Options) error {
	raw := make([]byte, headerSize)
	if _, err := e.file.ReadAt(raw, 0); err != nil {
		return fmt.Errorf("read header: %w", errors.Join(err, ErrIO))
	}

	h, err := decodeHeader(raw)
	if err != nil {
		return err
	}

	if h.slotCount != opts.SlotCount {
		return fmt.Errorf("file has SlotCount %d, Options asked for %d: %w", h.slotCount, opts.SlotCount, ErrCorrupt)
	}
	if h.nodeValueSize != opts.NodeValueSize {
		return fmt.Errorf("file has NodeValueSize %d, Options asked for %d: %w", h.nodeValueSize, opts.NodeValueSize, ErrCorrupt)
	}
	if h.headerValueSize != opts.HeaderValueSize {
		return fmt.Errorf("file has HeaderValueSize %d, Options asked for %d: %w", h.headerValueSize, opts.HeaderValueSize, ErrCorrupt)
	}

	return nil
}

// Close closes the underlying file handle. Calling any other method that
// returns an error after Close returns ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if err := e.file.Close(); err != nil {
		return fmt.Errorf("close: %w", errors.Join(err, ErrIO))
	}
	return nil
}

func (e *Engine) checkOpen() error {
	if e.closed {
		return ErrClosed
	}
	return nil
}

// fileSize returns the current on-disk file size, used to find the EOF
// append offset for a new physical node.
func (e *Engine) fileSize() (uint64, error) {
	info, err := e.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", errors.Join(err, ErrIO))
	}
	return uint64(info.Size()), nil
}

func (e *Engine) readAt(off uint64, buf []byte) error {
	_, err := e.file.ReadAt(buf, int64(off))
	if err != nil {
		return fmt.Errorf("read at %d: %w", off, errors.Join(err, ErrIO))
	}
	return nil
}

func (e *Engine) writeAt(off uint64, buf []byte) error {
	_, err := e.file.WriteAt(buf, int64(off))
	if err != nil {
		return fmt.Errorf("write at %d: %w", off, errors.Join(err, ErrIO))
	}
	return nil
}

func (e *Engine) readSlotInfo(slot uint64) (slotDirEntry, error) {
	buf := make([]byte, slotInfoSize)
	if err := e.readAt(e.layout.slotInfoOffset(slot), buf); err != nil {
		return slotDirEntry{}, err
	}
	return decodeSlotInfo(buf)
}

func (e *Engine) writeSlotInfo(slot uint64, si slotDirEntry) error {
	return e.writeAt(e.layout.slotInfoOffset(slot), encodeSlotInfo(si))
}

func (e *Engine) readNodeHeader(off uint64) (nodeHeader, error) {
	buf := make([]byte, nodeHdrSize)
	if err := e.readAt(off, buf); err != nil {
		return nodeHeader{}, err
	}
	return decodeNodeHeader(buf)
}

func (e *Engine) writeNodeHeader(off uint64, n nodeHeader) error {
	return e.writeAt(off, encodeNodeHeader(n))
}

func (e *Engine) readNodeValue(off uint64) ([]byte, error) {
	buf := make([]byte, e.layout.nodeValueSize)
	if err := e.readAt(off+nodeHdrSize, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *Engine) writeNodeValue(off uint64, value []byte) error {
	return e.writeAt(off+nodeHdrSize, value)
}

func (e *Engine) anchorOffset(slot uint64) uint64 {
	return e.layout.anchorOffset(slot)
}

// physicalWalkBound returns a conservative upper bound on the number of
// distinct nodes a single bucket's physical chain can contain, derived
// from the current file size. Walks use it to detect a chain that never
// closes back on its anchor instead of looping forever over a corrupt
// file.
func (e *Engine) physicalWalkBound() (uint64, error) {
	size, err := e.fileSize()
	if err != nil {
		return 0, err
	}
	if size <= e.layout.anchorsBaseOff {
		return uint64(e.layout.slotCount), nil
	}
	return (size-e.layout.anchorsBaseOff)/e.layout.nodeSize + 1, nil
}

// GetHeaderData reads the file-wide HeaderData blob into dst, which must be
// exactly Options.HeaderValueSize bytes long.
func (e *Engine) GetHeaderData(dst []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	if uint32(len(dst)) != e.layout.headerValueSize {
		return fmt.Errorf("dst is %d bytes, want %d: %w", len(dst), e.layout.headerValueSize, ErrInvalid)
	}
	if len(dst) == 0 {
		return nil
	}
	return e.readAt(e.layout.headerDataOff, dst)
}

// SetHeaderData overwrites the file-wide HeaderData blob. value must be
// exactly Options.HeaderValueSize bytes long.
func (e *Engine) SetHeaderData(value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	if uint32(len(value)) != e.layout.headerValueSize {
		return fmt.Errorf("value is %d bytes, want %d: %w", len(value), e.layout.headerValueSize, ErrInvalid)
	}
	if len(value) == 0 {
		return nil
	}
	return e.writeAt(e.layout.headerDataOff, value)
}

// SlotNodeCount returns the number of live nodes in bucket slot.
func (e *Engine) SlotNodeCount(slot uint64) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	if slot >= uint64(e.layout.slotCount) {
		return 0, fmt.Errorf("slot %d out of range [0, %d): %w", slot, e.layout.slotCount, ErrInvalid)
	}

	si, err := e.readSlotInfo(slot)
	if err != nil {
		return 0, err
	}
	return si.nodeCnt, nil
}

// SlotEmpty reports whether bucket slot currently has zero live nodes.
func (e *Engine) SlotEmpty(slot uint64) (bool, error) {
	n, err := e.SlotNodeCount(slot)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// SlotCount returns the number of buckets this file was created with.
func (e *Engine) SlotCount() uint32 { return e.layout.slotCount }
