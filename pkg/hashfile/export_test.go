package hashfile

// Exported for black-box tests in hashfile_test that need to reach internal
// state a real caller never touches directly. Compiled only during tests.

// MaxFileSizeForTesting exposes maxFileSize so a test can compute a
// truncation point near the limit without hardcoding it twice.
const MaxFileSizeForTesting = maxFileSize

// TruncateFileForTesting resizes the engine's underlying file. Used to
// exercise appendPhysicalNode's maxFileSize guard via a sparse truncate
// instead of actually writing a multi-terabyte file.
func TruncateFileForTesting(e *Engine, size int64) error {
	return e.file.Truncate(size)
}
