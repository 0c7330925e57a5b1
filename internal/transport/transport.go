// Package transport provides the remote session abstraction used by the
// operation handlers: stat, mkdir, put, read, exec and listdir primitives
// over a single SSH/SFTP connection.
package transport

import (
	"io"
)

// FileInfo is a point-in-time snapshot of a remote file's metadata.
type FileInfo struct {
	Size    uint64
	ModTime float64 // seconds since epoch
	IsDir   bool
}

// DirEntry describes one item in a remote directory listing.
type DirEntry struct {
	Name         string `json:"name"`
	Size         uint64 `json:"size"`
	IsDirectory  bool   `json:"is_directory"`
	Permissions  string `json:"permissions"` // octal, e.g. "644"
	ModifiedTime int64  `json:"modified_time"`
}

// Session abstracts one open connection to the remote host. Every
// operation dials a fresh Session and closes it before returning;
// sessions are not shared or pooled.
type Session interface {
	// Stat returns metadata for a remote path. The second return is
	// false when the path does not exist; that is not an error.
	Stat(path string) (FileInfo, bool, error)

	// Mkdir creates a single directory level. An already-existing
	// directory is not an error.
	Mkdir(path string) error

	// Put uploads a local file and returns the size reported by the
	// remote side after the transfer.
	Put(localPath, remotePath string) (uint64, error)

	// Open opens a remote file for reading.
	Open(path string) (io.ReadCloser, error)

	// Exec runs a shell command, optionally prefixed with a working
	// directory change, and returns exit code, stdout and stderr.
	Exec(command, workingDir string) (exitCode int, stdout, stderr string, err error)

	// ListDir lists the immediate entries of a remote directory.
	ListDir(path string) ([]DirEntry, error)

	// Close releases the connection.
	Close() error
}
