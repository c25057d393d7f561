// Package storage defines the data-directory file abstraction.
package storage

// Provider is the interface for data-directory file operations.
// All paths are relative to the provider root.
type Provider interface {
	// Root returns the absolute path of the data directory.
	Root() string
	// Read returns the raw bytes of the file at path. A missing file yields
	// an error matching os.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
}
