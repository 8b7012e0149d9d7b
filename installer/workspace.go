package installer

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// SanitizeIdentity transforms an arbitrary package spec or product name
// into a string safe to use as a path component, the way a throwaway
// per-package build directory name might need to be derived from
// user-supplied text. Adapted from the same character-class transform a
// git branch name sanitizer would apply: lowercase, replace unsafe
// characters with '-', collapse runs, trim stray separators.
func SanitizeIdentity(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cannot sanitize empty identity")
	}

	unsafe := map[rune]bool{
		' ': true, '~': true, '^': true, ':': true, '?': true, '*': true,
		'[': true, ']': true, '\\': true, '{': true, '}': true, '#': true,
		'@': true, '/': true,
	}

	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsControl(r) {
			continue
		}
		if unsafe[r] {
			b.WriteRune('-')
		} else {
			b.WriteRune(r)
		}
	}

	result := b.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-.")

	if result == "" {
		return "", fmt.Errorf("sanitization of %q produced an empty path component", name)
	}
	return result, nil
}

// Workspace is the on-disk build root for one session's package
// installations: a single persistent package_base directory that
// accumulates dependencies across install directives, the modules/
// directory the REPL is configured to see, and a libs/ directory that
// Install leaves empty.
type Workspace struct {
	Root         string
	PackageBase  string
	ModulesDir   string
	LibsDir      string
}

// EnsureWorkspace creates the directory layout rooted at root, if it
// doesn't already exist.
func EnsureWorkspace(root, packageBase, modulesDir, libsDir string) (*Workspace, error) {
	for _, dir := range []string{root, packageBase, modulesDir, libsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create workspace dir %s: %w", dir, err)
		}
	}
	return &Workspace{Root: root, PackageBase: packageBase, ModulesDir: modulesDir, LibsDir: libsDir}, nil
}
