package hashfile

import "errors"

// Sentinel errors classify every failure this package returns. Use
// errors.Is against these, not string matching; every returned error wraps
// one of these via fmt.Errorf("...: %w", ...) so the classification survives
// the call stack.
var (
	// ErrIO wraps an underlying filesystem failure (open/read/write/sync).
	// The original *PathError or syscall.Errno is still reachable by
	// unwrapping further.
	ErrIO = errors.New("hashfile: io error")

	// ErrAlloc means a new node could not be placed: appendPhysicalNode
	// would have grown the file past maxFileSize (see limits.go).
	ErrAlloc = errors.New("hashfile: allocation failure")

	// ErrNotFound means a lookup found no matching entry. Engine.Delete
	// does NOT return this for a missing key; see its doc comment.
	ErrNotFound = errors.New("hashfile: not found")

	// ErrCorrupt means the on-disk structure violates an invariant a
	// read path depends on (bad magic, a chain that doesn't close, a
	// node whose bucket doesn't match its key). The file should be
	// recreated with ModeRebuild; there is no repair path.
	ErrCorrupt = errors.New("hashfile: corrupt")

	// ErrClosed means a method was called on an Engine after Close.
	ErrClosed = errors.New("hashfile: closed")

	// ErrInvalid means an argument failed validation (bad Options, a
	// value of the wrong size, a nil Matcher/Visitor where one is
	// required).
	ErrInvalid = errors.New("hashfile: invalid argument")
)
