package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	content := []byte("hello sftpsync")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := localDigest(path)
	if err != nil {
		t.Fatalf("localDigest() error = %v", err)
	}
	sum := sha256.Sum256(content)
	if got != hex.EncodeToString(sum[:]) {
		t.Errorf("localDigest() = %s, want %s", got, hex.EncodeToString(sum[:]))
	}
}

func TestLocalDigest_Missing(t *testing.T) {
	if _, err := localDigest(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("localDigest() should fail for a missing file")
	}
}

func TestRemoteDigest(t *testing.T) {
	sum := strings.Repeat("ab", 32)

	t.Run("parses first field", func(t *testing.T) {
		fake := newFakeSession()
		fake.execFn = func(command, workingDir string) (int, string, string, error) {
			if !strings.HasPrefix(command, "sha256sum ") {
				t.Errorf("command = %q, want sha256sum invocation", command)
			}
			return 0, sum + "  /srv/f.txt\n", "", nil
		}
		got, ok := remoteDigest(fake, "/srv/f.txt")
		if !ok || got != sum {
			t.Errorf("remoteDigest() = %q, %v; want %q, true", got, ok, sum)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		fake := newFakeSession()
		fake.execFn = func(command, workingDir string) (int, string, string, error) {
			return 1, "", "sha256sum: /srv/f.txt: No such file", nil
		}
		if _, ok := remoteDigest(fake, "/srv/f.txt"); ok {
			t.Error("remoteDigest() should report no digest on failure")
		}
	})

	t.Run("garbage output", func(t *testing.T) {
		fake := newFakeSession()
		fake.execFn = func(command, workingDir string) (int, string, string, error) {
			return 0, "usage: sha256sum [file]", "", nil
		}
		if _, ok := remoteDigest(fake, "/srv/f.txt"); ok {
			t.Error("remoteDigest() should reject output without a digest field")
		}
	})
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/srv/app/f.txt", "'/srv/app/f.txt'"},
		{"/srv/with space/f", "'/srv/with space/f'"},
		{"/srv/o'brien", `'/srv/o'\''brien'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
