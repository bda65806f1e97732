package hashfile

import (
	"fmt"

	"github.com/kalbhor/plhash/internal/fsx"
)

// Mode selects Open's behavior when the target file does or doesn't
// already exist.
type Mode int

const (
	// ModeOpenOrCreate opens Path if it exists, leaving its contents
	// untouched (no validation beyond the header check every Open
	// performs); if it doesn't exist, it is created fresh using the
	// rest of Options.
	ModeOpenOrCreate Mode = iota

	// ModeRebuild unconditionally removes Path (if present) and creates
	// it fresh using the rest of Options, discarding any prior contents.
	ModeRebuild
)

// Options configures Open. Every field is validated eagerly and
// exhaustively before any I/O is attempted; the first violation found is
// returned wrapped in ErrInvalid.
type Options struct {
	// Path is the file to open or create.
	Path string

	// Mode selects open-or-create vs. destructive rebuild behavior.
	Mode Mode

	// SlotCount is the number of hash buckets. Immutable for the life
	// of the file: opening an existing file with a different SlotCount
	// than it was created with is a corruption error, not a resize.
	SlotCount uint32

	// NodeValueSize is the fixed width, in bytes, of every node's
	// payload (the "music_t"-shaped value a caller stores per key).
	NodeValueSize uint32

	// HeaderValueSize is the fixed width, in bytes, of the single
	// file-wide HeaderData blob (may be zero).
	HeaderValueSize uint32

	// FS overrides the filesystem implementation; nil selects
	// fsx.NewReal(). Tests use this to inject fsx.NewChaos.
	FS fsx.FS
}

func (o Options) validate() error {
	if o.Path == "" {
		return fmt.Errorf("Path must not be empty: %w", ErrInvalid)
	}
	if o.Mode != ModeOpenOrCreate && o.Mode != ModeRebuild {
		return fmt.Errorf("Mode %d is not a known mode: %w", o.Mode, ErrInvalid)
	}
	if o.SlotCount == 0 {
		return fmt.Errorf("SlotCount must be at least 1: %w", ErrInvalid)
	}
	if o.SlotCount > maxSlotCount {
		return fmt.Errorf("SlotCount %d exceeds the implementation limit %d: %w", o.SlotCount, maxSlotCount, ErrInvalid)
	}
	if o.NodeValueSize > maxNodeValueSize {
		return fmt.Errorf("NodeValueSize %d exceeds the implementation limit %d: %w", o.NodeValueSize, maxNodeValueSize, ErrInvalid)
	}
	if o.HeaderValueSize > maxNodeValueSize {
		return fmt.Errorf("HeaderValueSize %d exceeds the implementation limit %d: %w", o.HeaderValueSize, maxNodeValueSize, ErrInvalid)
	}
	return nil
}
