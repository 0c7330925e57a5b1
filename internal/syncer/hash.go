package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tturner/sftpsync/internal/transport"
)

// digestChunkSize bounds memory while hashing large files.
const digestChunkSize = 64 * 1024

// localDigest computes the SHA-256 of a local file, reading in
// fixed-size chunks.
func localDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// remoteDigest obtains the remote file's SHA-256 by running sha256sum
// through the session. SFTP has no hashing primitive, so the command
// path is the only way to get a digest without downloading the file.
// Any failure reports "no digest available" and the caller treats the
// file as stale.
func remoteDigest(sess transport.Session, remotePath string) (string, bool) {
	exitCode, stdout, _, err := sess.Exec("sha256sum "+shellQuote(remotePath), "")
	if err != nil || exitCode != 0 {
		return "", false
	}

	// Output shape: "<hex>  <path>"
	fields := strings.Fields(stdout)
	if len(fields) == 0 || len(fields[0]) != sha256.Size*2 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

// shellQuote single-quotes a path for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
