package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/tturner/sftpsync/internal/logging"
	"github.com/tturner/sftpsync/internal/transport"
)

// fakeSession is an in-memory remote filesystem implementing
// transport.Session.
type fakeSession struct {
	dirs    map[string]bool
	files   map[string]fakeFile
	putErrs map[string]error // remote path -> forced Put failure
	execFn  func(command, workingDir string) (int, string, string, error)

	statCalls  []string
	mkdirCalls []string
	putCalls   []string
	closed     bool
}

type fakeFile struct {
	size    uint64
	modTime float64
	content []byte
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		dirs:    make(map[string]bool),
		files:   make(map[string]fakeFile),
		putErrs: make(map[string]error),
	}
}

func (f *fakeSession) Stat(path string) (transport.FileInfo, bool, error) {
	f.statCalls = append(f.statCalls, path)
	if f.dirs[path] {
		return transport.FileInfo{IsDir: true}, true, nil
	}
	if file, ok := f.files[path]; ok {
		return transport.FileInfo{Size: file.size, ModTime: file.modTime}, true, nil
	}
	return transport.FileInfo{}, false, nil
}

func (f *fakeSession) Mkdir(path string) error {
	f.mkdirCalls = append(f.mkdirCalls, path)
	f.dirs[path] = true
	return nil
}

func (f *fakeSession) Put(localPath, remotePath string) (uint64, error) {
	f.putCalls = append(f.putCalls, remotePath)
	if err := f.putErrs[remotePath]; err != nil {
		return 0, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, err
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	f.files[remotePath] = fakeFile{
		size:    uint64(info.Size()),
		modTime: float64(info.ModTime().UnixNano()) / float64(time.Second),
		content: content,
	}
	return uint64(info.Size()), nil
}

func (f *fakeSession) Open(path string) (io.ReadCloser, error) { panic("not used in sync") }

func (f *fakeSession) Exec(command, workingDir string) (int, string, string, error) {
	if f.execFn != nil {
		return f.execFn(command, workingDir)
	}
	return 127, "", "command not found", nil
}

func (f *fakeSession) ListDir(path string) ([]transport.DirEntry, error) { panic("not used") }

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return full
}

func newTestPlanner(t *testing.T, fake *fakeSession, base []string) *Planner {
	t.Helper()
	return New(func() (transport.Session, error) { return fake, nil }, base, testLogger(t))
}

func TestSync_EmptyPaths(t *testing.T) {
	dialCalled := false
	p := New(func() (transport.Session, error) {
		dialCalled = true
		return nil, nil
	}, nil, testLogger(t))

	if _, err := p.Sync("", "/remote", DefaultOptions()); err == nil {
		t.Error("Sync() should reject empty local root")
	}
	if _, err := p.Sync("/local", "", DefaultOptions()); err == nil {
		t.Error("Sync() should reject empty remote root")
	}
	if dialCalled {
		t.Error("precondition failures must not open a connection")
	}
}

func TestSync_MissingLocalRoot(t *testing.T) {
	dialCalled := false
	p := New(func() (transport.Session, error) {
		dialCalled = true
		return nil, nil
	}, nil, testLogger(t))

	_, err := p.Sync(filepath.Join(t.TempDir(), "nope"), "/remote", DefaultOptions())
	if err == nil {
		t.Fatal("Sync() should fail for a missing local root")
	}
	if dialCalled {
		t.Error("local existence is checked before dialing")
	}
}

func TestSync_DialFailure(t *testing.T) {
	p := New(func() (transport.Session, error) {
		return nil, fmt.Errorf("auth failed")
	}, nil, testLogger(t))

	res, err := p.Sync(t.TempDir(), "/remote", DefaultOptions())
	if err == nil {
		t.Fatal("Sync() should surface a connection failure")
	}
	if res != nil {
		t.Error("a connection failure must not produce a partial result")
	}
}

func TestSync_UploadsTree(t *testing.T) {
	local := t.TempDir()
	writeFile(t, local, "a.txt", "alpha")
	writeFile(t, local, "sub/b.txt", "beta")
	writeFile(t, local, "debug.log", "noise")
	writeFile(t, local, "node_modules/x.js", "dep")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, []string{"*.log", "node_modules/"})

	res, err := p.Sync(local, "/srv/app", DefaultOptions())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	wantUploads := []string{"a.txt", "sub/b.txt"}
	gotUploads := append([]string{}, res.UploadedFiles...)
	sort.Strings(gotUploads)
	if !reflect.DeepEqual(gotUploads, wantUploads) {
		t.Errorf("UploadedFiles = %v, want %v", gotUploads, wantUploads)
	}

	wantDirs := []string{"/srv", "/srv/app", "/srv/app/sub"}
	gotDirs := append([]string{}, res.CreatedDirectories...)
	sort.Strings(gotDirs)
	if !reflect.DeepEqual(gotDirs, wantDirs) {
		t.Errorf("CreatedDirectories = %v, want %v", gotDirs, wantDirs)
	}

	wantIgnored := []string{"debug.log", "node_modules/"}
	gotIgnored := append([]string{}, res.IgnoredItems...)
	sort.Strings(gotIgnored)
	if !reflect.DeepEqual(gotIgnored, wantIgnored) {
		t.Errorf("IgnoredItems = %v, want %v", gotIgnored, wantIgnored)
	}

	if len(res.Errors) != 0 {
		t.Errorf("Errors = %v, want none", res.Errors)
	}
	if !fake.closed {
		t.Error("session should be closed after the run")
	}

	// Pruned directory contents are never visited remotely.
	for _, call := range fake.statCalls {
		if call == "/srv/app/node_modules/x.js" {
			t.Error("ignored directory contents should never be stat'd")
		}
	}
}

func TestSync_Idempotence(t *testing.T) {
	local := t.TempDir()
	writeFile(t, local, "a.txt", "alpha")
	writeFile(t, local, "sub/b.txt", "beta")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)

	if _, err := p.Sync(local, "/srv/app", DefaultOptions()); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}

	res, err := p.Sync(local, "/srv/app", DefaultOptions())
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if len(res.UploadedFiles) != 0 {
		t.Errorf("second run UploadedFiles = %v, want empty", res.UploadedFiles)
	}
	if len(res.CreatedDirectories) != 0 {
		t.Errorf("second run CreatedDirectories = %v, want empty", res.CreatedDirectories)
	}
	got := append([]string{}, res.SkippedFiles...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a.txt", "sub/b.txt"}) {
		t.Errorf("second run SkippedFiles = %v, want full file set", res.SkippedFiles)
	}
}

func TestSync_StalenessMtime(t *testing.T) {
	local := t.TempDir()
	full := writeFile(t, local, "a.txt", "10bytes---")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)
	if _, err := p.Sync(local, "/dst", DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	t.Run("within tolerance skips", func(t *testing.T) {
		info, _ := os.Stat(full)
		shifted := info.ModTime().Add(500 * time.Millisecond)
		if err := os.Chtimes(full, shifted, shifted); err != nil {
			t.Fatal(err)
		}

		res, err := p.Sync(local, "/dst", DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if len(res.UploadedFiles) != 0 {
			t.Errorf("mtime drift of 0.5s should be absorbed, got uploads %v", res.UploadedFiles)
		}
		if !reflect.DeepEqual(res.SkippedFiles, []string{"a.txt"}) {
			t.Errorf("SkippedFiles = %v, want [a.txt]", res.SkippedFiles)
		}
	})

	t.Run("beyond tolerance uploads", func(t *testing.T) {
		info, _ := os.Stat(full)
		shifted := info.ModTime().Add(3 * time.Second)
		if err := os.Chtimes(full, shifted, shifted); err != nil {
			t.Fatal(err)
		}

		res, err := p.Sync(local, "/dst", DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(res.UploadedFiles, []string{"a.txt"}) {
			t.Errorf("UploadedFiles = %v, want [a.txt]", res.UploadedFiles)
		}
	})
}

func TestSync_SizeMismatchUploads(t *testing.T) {
	local := t.TempDir()
	full := writeFile(t, local, "a.txt", "short")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)
	if _, err := p.Sync(local, "/dst", DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	// Grow the file but keep the stored remote mtime equal.
	info, _ := os.Stat(full)
	if err := os.WriteFile(full, []byte("much longer now"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(full, info.ModTime(), info.ModTime()); err != nil {
		t.Fatal(err)
	}

	res, err := p.Sync(local, "/dst", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.UploadedFiles, []string{"a.txt"}) {
		t.Errorf("UploadedFiles = %v, want [a.txt] on size mismatch", res.UploadedFiles)
	}
}

func TestSync_SkipUnchangedDisabled(t *testing.T) {
	local := t.TempDir()
	writeFile(t, local, "a.txt", "alpha")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)
	if _, err := p.Sync(local, "/dst", DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	res, err := p.Sync(local, "/dst", Options{SkipUnchanged: false})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.UploadedFiles, []string{"a.txt"}) {
		t.Errorf("UploadedFiles = %v, everything re-uploads when SkipUnchanged is off", res.UploadedFiles)
	}
}

func TestSync_PartialFailure(t *testing.T) {
	local := t.TempDir()
	writeFile(t, local, "a.txt", "a")
	writeFile(t, local, "b.txt", "b")
	writeFile(t, local, "c.txt", "c")

	fake := newFakeSession()
	fake.putErrs["/dst/b.txt"] = fmt.Errorf("permission denied")
	p := newTestPlanner(t, fake, nil)

	res, err := p.Sync(local, "/dst", DefaultOptions())
	if err != nil {
		t.Fatalf("Sync() error = %v, per-item failures must not abort", err)
	}

	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].Path != "b.txt" {
		t.Errorf("Errors[0].Path = %q, want b.txt", res.Errors[0].Path)
	}

	got := append([]string{}, res.UploadedFiles...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a.txt", "c.txt"}) {
		t.Errorf("UploadedFiles = %v, want the other two", got)
	}
}

func TestSync_CheckHash(t *testing.T) {
	local := t.TempDir()
	full := writeFile(t, local, "a.txt", "aaaa")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)
	if _, err := p.Sync(local, "/dst", DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	// Rewrite with same size and mtime so only the hash differs.
	info, _ := os.Stat(full)
	if err := os.WriteFile(full, []byte("bbbb"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(full, info.ModTime(), info.ModTime()); err != nil {
		t.Fatal(err)
	}

	fake.execFn = func(command, workingDir string) (int, string, string, error) {
		remote := fake.files["/dst/a.txt"]
		sum := sha256.Sum256(remote.content)
		return 0, hex.EncodeToString(sum[:]) + "  /dst/a.txt\n", "", nil
	}

	t.Run("without hash check the change is missed", func(t *testing.T) {
		res, err := p.Sync(local, "/dst", DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if len(res.UploadedFiles) != 0 {
			t.Errorf("size+mtime match should skip without CheckHash, got %v", res.UploadedFiles)
		}
	})

	t.Run("hash mismatch uploads", func(t *testing.T) {
		res, err := p.Sync(local, "/dst", Options{SkipUnchanged: true, CheckHash: true})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(res.UploadedFiles, []string{"a.txt"}) {
			t.Errorf("UploadedFiles = %v, want [a.txt] on hash mismatch", res.UploadedFiles)
		}
	})

	t.Run("hash match skips", func(t *testing.T) {
		res, err := p.Sync(local, "/dst", Options{SkipUnchanged: true, CheckHash: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.UploadedFiles) != 0 {
			t.Errorf("identical content should skip, got %v", res.UploadedFiles)
		}
	})

	t.Run("no remote digest means stale", func(t *testing.T) {
		fake.execFn = func(command, workingDir string) (int, string, string, error) {
			return 127, "", "sha256sum: not found", nil
		}
		res, err := p.Sync(local, "/dst", Options{SkipUnchanged: true, CheckHash: true})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(res.UploadedFiles, []string{"a.txt"}) {
			t.Errorf("UploadedFiles = %v, unavailable remote digest must force upload", res.UploadedFiles)
		}
	})
}

func TestSync_IgnoreFileUnderRoot(t *testing.T) {
	local := t.TempDir()
	writeFile(t, local, ".gitignore", "*.tmp\n")
	writeFile(t, local, "keep.txt", "k")
	writeFile(t, local, "scratch.tmp", "s")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)

	res, err := p.Sync(local, "/dst", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	for _, ig := range res.IgnoredItems {
		if ig == "scratch.tmp" {
			return
		}
	}
	t.Errorf("IgnoredItems = %v, want scratch.tmp via the root .gitignore", res.IgnoredItems)
}

func TestSync_RelativeRemoteRoot(t *testing.T) {
	local := t.TempDir()
	writeFile(t, local, "a.txt", "a")

	fake := newFakeSession()
	p := newTestPlanner(t, fake, nil)

	res, err := p.Sync(local, "srv/app", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	wantDirs := []string{"srv", "srv/app"}
	if !reflect.DeepEqual(res.CreatedDirectories, wantDirs) {
		t.Errorf("CreatedDirectories = %v, want %v", res.CreatedDirectories, wantDirs)
	}
}
