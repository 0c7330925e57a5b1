// Package syncer walks a local directory tree and mirrors it to the
// remote host, deciding per file whether to upload or skip.
package syncer

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tturner/sftpsync/internal/errors"
	"github.com/tturner/sftpsync/internal/ignore"
	"github.com/tturner/sftpsync/internal/logging"
	"github.com/tturner/sftpsync/internal/transport"
)

// mtimeToleranceSeconds absorbs filesystem timestamp precision
// differences across platforms.
const mtimeToleranceSeconds = 1.0

// IgnoreFileName is the per-tree ignore file read from the sync root.
const IgnoreFileName = ".gitignore"

// Options controls the staleness policy for one sync run.
type Options struct {
	SkipUnchanged bool
	CheckHash     bool
}

// DefaultOptions returns the default sync options.
func DefaultOptions() Options {
	return Options{SkipUnchanged: true}
}

// ItemError records one file's failure during a multi-file sync.
type ItemError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the itemized account of one sync run. Sequences keep walk
// order. A fresh Result is built per invocation; nothing persists.
type Result struct {
	UploadedFiles      []string    `json:"uploaded_files"`
	SkippedFiles       []string    `json:"skipped_files"`
	CreatedDirectories []string    `json:"created_directories"`
	IgnoredItems       []string    `json:"ignored_items"`
	Errors             []ItemError `json:"errors"`
}

func newResult() *Result {
	return &Result{
		UploadedFiles:      []string{},
		SkippedFiles:       []string{},
		CreatedDirectories: []string{},
		IgnoredItems:       []string{},
		Errors:             []ItemError{},
	}
}

// DialFunc opens a fresh remote session for one sync run.
type DialFunc func() (transport.Session, error)

// Planner orchestrates a directory sync: it is the sole caller of the
// pattern matcher and the sole driver of the remote session during a run.
type Planner struct {
	dial   DialFunc
	base   []string // configured base ignore patterns
	logger *logging.Logger
}

// New creates a Planner. basePatterns come from configuration; patterns
// from the ignore file under the sync root are appended at run time.
func New(dial DialFunc, basePatterns []string, logger *logging.Logger) *Planner {
	return &Planner{dial: dial, base: basePatterns, logger: logger}
}

// Sync mirrors localRoot onto remoteRoot and returns the itemized
// result. Local preconditions are checked before the connection is
// opened; a connection failure aborts the whole run with no partial
// result. Individual upload failures are recorded and the walk
// continues.
func (p *Planner) Sync(localRoot, remoteRoot string, opts Options) (*Result, error) {
	if localRoot == "" || remoteRoot == "" {
		return nil, errors.Configuration("local and remote paths must be specified")
	}
	if _, err := os.Stat(localRoot); err != nil {
		return nil, errors.Path("local path does not exist: %s", localRoot)
	}

	patterns := append(append([]string{}, p.base...), ignore.LoadFile(filepath.Join(localRoot, IgnoreFileName))...)
	matcher := ignore.Compile(patterns)

	sess, err := p.dial()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res := newResult()

	if err := p.ensureRemoteRoot(sess, remoteRoot, res); err != nil {
		return nil, err
	}

	walkErr := filepath.WalkDir(localRoot, func(localPath string, d fs.DirEntry, err error) error {
		if err != nil {
			rel := relPath(localRoot, localPath)
			res.Errors = append(res.Errors, ItemError{Path: rel, Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if localPath == localRoot {
			return nil
		}

		rel := relPath(localRoot, localPath)

		if d.IsDir() {
			if matcher.Matches(rel, true) {
				res.IgnoredItems = append(res.IgnoredItems, rel+"/")
				return filepath.SkipDir
			}
			remoteDir := path.Join(remoteRoot, rel)
			if err := p.ensureRemoteDir(sess, remoteDir, res); err != nil {
				res.Errors = append(res.Errors, ItemError{Path: rel, Message: err.Error()})
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.Matches(rel, false) {
			res.IgnoredItems = append(res.IgnoredItems, rel)
			return nil
		}

		remotePath := path.Join(remoteRoot, rel)
		p.syncFile(sess, localPath, remotePath, rel, opts, res)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", localRoot, walkErr)
	}

	return res, nil
}

// ensureRemoteRoot creates every missing /-prefix of remoteRoot.
// Idempotent: an already-materialized tree creates nothing.
func (p *Planner) ensureRemoteRoot(sess transport.Session, remoteRoot string, res *Result) error {
	current := ""
	for _, part := range strings.Split(remoteRoot, "/") {
		if part == "" {
			continue
		}
		if current == "" && !strings.HasPrefix(remoteRoot, "/") {
			current = part
		} else {
			current += "/" + part
		}

		_, found, err := sess.Stat(current)
		if err != nil {
			return err
		}
		if !found {
			if err := sess.Mkdir(current); err != nil {
				return err
			}
			res.CreatedDirectories = append(res.CreatedDirectories, current)
		}
	}
	return nil
}

// ensureRemoteDir stats one remote directory and creates it if absent.
func (p *Planner) ensureRemoteDir(sess transport.Session, remoteDir string, res *Result) error {
	_, found, err := sess.Stat(remoteDir)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	if err := sess.Mkdir(remoteDir); err != nil {
		return err
	}
	res.CreatedDirectories = append(res.CreatedDirectories, remoteDir)
	return nil
}

// syncFile applies the staleness policy and uploads when needed. A
// failure is recorded against the file; it never aborts the walk.
func (p *Planner) syncFile(sess transport.Session, localPath, remotePath, rel string, opts Options, res *Result) {
	stale, err := p.needsSync(sess, localPath, remotePath, opts)
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Path: rel, Message: err.Error()})
		return
	}
	if !stale {
		p.logger.Debug("skip %s (unchanged)", rel)
		res.SkippedFiles = append(res.SkippedFiles, rel)
		return
	}

	start := time.Now()
	size, err := sess.Put(localPath, remotePath)
	if err != nil {
		p.logger.LogTransfer("UPLOAD", rel, 0, time.Since(start), err)
		res.Errors = append(res.Errors, ItemError{
			Path:    rel,
			Message: fmt.Sprintf("failed to upload: %v", err),
		})
		return
	}
	p.logger.LogTransfer("UPLOAD", rel, size, time.Since(start), nil)
	res.UploadedFiles = append(res.UploadedFiles, rel)
}

// needsSync decides whether the remote copy is stale. Cascade: absent,
// then size, then mtime within tolerance, then optional content hash.
func (p *Planner) needsSync(sess transport.Session, localPath, remotePath string, opts Options) (bool, error) {
	if !opts.SkipUnchanged {
		return true, nil
	}

	localInfo, err := os.Stat(localPath)
	if err != nil {
		return false, errors.WrapPath(err, "stat local file %s", localPath)
	}

	remoteInfo, found, err := sess.Stat(remotePath)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}

	if uint64(localInfo.Size()) != remoteInfo.Size {
		return true, nil
	}

	localMtime := float64(localInfo.ModTime().UnixNano()) / float64(time.Second)
	if math.Abs(localMtime-remoteInfo.ModTime) > mtimeToleranceSeconds {
		return true, nil
	}

	if opts.CheckHash {
		localSum, err := localDigest(localPath)
		if err != nil {
			return false, err
		}
		remoteSum, ok := remoteDigest(sess, remotePath)
		if !ok || localSum != remoteSum {
			return true, nil
		}
	}

	return false, nil
}

func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
