package fsx

import (
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"syscall"
)

// ChaosConfig controls fault injection probabilities for [Chaos].
//
// Each rate is a float64 from 0.0 (never) to 1.0 (always). The zero value
// disables all fault injection.
type ChaosConfig struct {
	// ReadAtFailRate controls how often File.ReadAt fails entirely,
	// returning zero bytes and EIO.
	ReadAtFailRate float64

	// WriteAtFailRate controls how often File.WriteAt fails entirely,
	// returning zero bytes written and an error (EIO or ENOSPC).
	WriteAtFailRate float64

	// PartialWriteAtRate controls how often File.WriteAt writes only a
	// prefix of p before failing, simulating a write that fails partway
	// through a record (the scenario spec.md §4.2's splice ordering note
	// treats as a fatal, unrecoverable I/O error).
	PartialWriteAtRate float64

	// SyncFailRate controls how often File.Sync fails, returning EIO.
	SyncFailRate float64

	// OpenFailRate controls how often FS.OpenFile fails, returning EIO.
	OpenFailRate float64
}

// Chaos wraps an [FS] and randomly injects the failures in [ChaosConfig].
//
// Used to exercise spec.md §7's claim that a failed splice leaves the file
// in a well-defined (if inconsistent) state rather than panicking or
// corrupting unrelated buckets.
type Chaos struct {
	underlying FS
	rng        *rand.Rand
	mu         sync.Mutex
	cfg        ChaosConfig
}

// NewChaos returns a [Chaos] filesystem wrapping underlying, seeded
// deterministically so failing tests are reproducible.
func NewChaos(underlying FS, seed uint64, cfg ChaosConfig) *Chaos {
	return &Chaos{
		underlying: underlying,
		rng:        rand.New(rand.NewPCG(seed, seed)),
		cfg:        cfg,
	}
}

func (c *Chaos) should(rate float64) bool {
	if rate <= 0 {
		return false
	}

	c.mu.Lock()
	hit := c.rng.Float64() < rate
	c.mu.Unlock()

	return hit
}

// OpenFile opens the underlying file, optionally injecting EIO.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.should(c.cfg.OpenFailRate) {
		return nil, &os.PathError{Op: "open", Path: path, Err: syscall.EIO}
	}

	f, err := c.underlying.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{underlying: f, chaos: c}, nil
}

// Stat is a passthrough to the underlying filesystem; Stat failures are not
// injected since Open's validation path treats stat errors identically to
// open errors and testing one exercises the other.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	return c.underlying.Stat(path)
}

// Remove is a passthrough to the underlying filesystem.
func (c *Chaos) Remove(path string) error {
	return c.underlying.Remove(path)
}

// WriteFileAtomic is a passthrough to the underlying filesystem.
//
// No failure is injected into WriteFileAtomic, so a create through Chaos
// behaves exactly like one through the underlying filesystem.
func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return c.underlying.WriteFileAtomic(path, data, perm)
}

// chaosFile wraps a [File] and injects the per-call failures of
// [ChaosConfig] into ReadAt/WriteAt/Sync.
type chaosFile struct {
	underlying File
	chaos      *Chaos
}

func (f *chaosFile) ReadAt(p []byte, off int64) (int, error) {
	if f.chaos.should(f.chaos.cfg.ReadAtFailRate) {
		return 0, fmt.Errorf("readat offset %d: %w", off, syscall.EIO)
	}

	return f.underlying.ReadAt(p, off)
}

func (f *chaosFile) WriteAt(p []byte, off int64) (int, error) {
	if f.chaos.should(f.chaos.cfg.WriteAtFailRate) {
		return 0, fmt.Errorf("writeat offset %d: %w", off, syscall.EIO)
	}

	if f.chaos.should(f.chaos.cfg.PartialWriteAtRate) && len(p) > 1 {
		short := p[:len(p)/2]

		n, err := f.underlying.WriteAt(short, off)
		if err != nil {
			return n, err
		}

		return n, fmt.Errorf("writeat offset %d: %w", off, syscall.EIO)
	}

	return f.underlying.WriteAt(p, off)
}

func (f *chaosFile) Close() error {
	return f.underlying.Close()
}

func (f *chaosFile) Truncate(size int64) error {
	return f.underlying.Truncate(size)
}

func (f *chaosFile) Stat() (os.FileInfo, error) {
	return f.underlying.Stat()
}

func (f *chaosFile) Sync() error {
	if f.chaos.should(f.chaos.cfg.SyncFailRate) {
		return fmt.Errorf("sync: %w", syscall.EIO)
	}

	return f.underlying.Sync()
}
