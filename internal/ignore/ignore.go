// Package ignore implements gitignore-style pattern matching for
// filtering paths during directory synchronization.
//
// The dialect is intentionally not full gitignore. Two simplifications
// are kept for compatibility with existing pattern lists:
//
//   - a trailing "**" is rewritten to "*" at compile time
//   - a mid-pattern "**" matches when every non-empty segment around it
//     is a substring of the path, regardless of position
//
// Anchored patterns (leading "/") gate on a literal prefix test against
// the pattern body, not a glob.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Rule is one compiled pattern line. Rules are immutable; evaluation
// order is the input order.
type Rule struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool
}

// PatternSet is an ordered sequence of rules evaluated with
// last-match-wins semantics.
type PatternSet struct {
	rules []Rule
}

// Compile parses raw pattern lines into a PatternSet. Blank lines and
// "#" comments are dropped. Order is preserved.
func Compile(lines []string) *PatternSet {
	ps := &PatternSet{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r := Rule{}

		if strings.HasPrefix(line, "!") {
			r.negated = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			r.anchored = true
			line = strings.TrimPrefix(line, "/")
		}

		// Simplified recursive glob: "foo/**" behaves as "foo/*".
		if strings.HasSuffix(line, "**") {
			line = strings.TrimSuffix(line, "**") + "*"
		}

		r.pattern = line
		ps.rules = append(ps.rules, r)
	}
	return ps
}

// Len returns the number of compiled rules.
func (ps *PatternSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.rules)
}

// Matches reports whether relPath should be ignored. relPath is
// relative to the sync root; isDir tells whether it names a directory.
// Directory-only rules never match plain files. The final verdict is
// that of the last matching rule, with negated rules clearing it.
func (ps *PatternSet) Matches(relPath string, isDir bool) bool {
	if ps == nil || len(ps.rules) == 0 {
		return false
	}

	p := filepath.ToSlash(relPath)
	ignored := false

	for _, r := range ps.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.anchored && !strings.HasPrefix(p, r.pattern) {
			continue
		}
		if matchPattern(r.pattern, p) {
			ignored = !r.negated
		}
	}
	return ignored
}

// matchPattern determines whether one rule body matches a path. A
// malformed glob never matches and never faults.
func matchPattern(pattern, p string) bool {
	if pattern == "" {
		return true
	}

	if strings.Contains(pattern, "**") {
		for _, seg := range strings.Split(pattern, "**") {
			if seg == "" {
				continue
			}
			if !strings.Contains(p, seg) {
				return false
			}
		}
		return true
	}

	if ok, err := path.Match(pattern, p); err == nil && ok {
		return true
	}

	// A bare filename pattern matches at any depth.
	base := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		base = p[i+1:]
	}
	ok, err := path.Match(pattern, base)
	return err == nil && ok
}

// LoadFile reads extra pattern lines from an ignore file. A missing or
// unreadable file yields no patterns; it is never an error.
func LoadFile(filePath string) []string {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanner.Err() != nil {
		return nil
	}
	return lines
}
