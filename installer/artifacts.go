package installer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	humanize "github.com/dustin/go-humanize"
)

// CopySwiftModules copies each named .swiftmodule/.swiftdoc/.swiftinterface
// file into modulesDir, overwriting existing files. Returns the total bytes copied for progress
// reporting.
func CopySwiftModules(files []string, modulesDir string) (int64, error) {
	var total int64
	for _, src := range files {
		n, err := copyFile(src, filepath.Join(modulesDir, filepath.Base(src)))
		if err != nil {
			return total, &ArtifactCopyError{Path: src, Err: err}
		}
		total += n
	}
	return total, nil
}

// headerPathRe finds `header "..."` clauses inside a module.modulemap so
// relative header paths can be rewritten absolute once the file moves.
var headerPathRe = regexp.MustCompile(`header\s+"([^"]*)"`)
var moduleNameRe = regexp.MustCompile(`^module\s+(\S+)\s*{`)

// CopyModuleMaps copies each module.modulemap file into its own
// subdirectory of modulesDir (ClangImporter requires every modulemap be
// literally named "module.modulemap", so sibling dependencies need
// separate directories), rewriting relative header paths to absolute ones
// since the file is moving.
func CopyModuleMaps(files []string, modulesDir string) error {
	for i, src := range files {
		data, err := os.ReadFile(src)
		if err != nil {
			return &ArtifactCopyError{Path: src, Err: err}
		}
		srcDir := filepath.Dir(src)

		rewritten := headerPathRe.ReplaceAllFunc(data, func(m []byte) []byte {
			sub := headerPathRe.FindSubmatch(m)
			headerPath := string(sub[1])
			if !filepath.IsAbs(headerPath) {
				headerPath = filepath.Join(srcDir, headerPath)
			}
			return []byte(fmt.Sprintf("header %q", headerPath))
		})

		moduleName := strconv.Itoa(i)
		if m := moduleNameRe.FindSubmatch(rewritten); m != nil {
			moduleName = string(m[1])
		}

		destDir := filepath.Join(modulesDir, "modulemap-"+moduleName)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return &ArtifactCopyError{Path: destDir, Err: err}
		}
		dest := filepath.Join(destDir, filepath.Base(src))
		if err := os.WriteFile(dest, rewritten, 0644); err != nil {
			return &ArtifactCopyError{Path: dest, Err: err}
		}
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}

// FormatCopied renders a human-readable summary of an artifact copy.
func FormatCopied(count int, bytes int64) string {
	return fmt.Sprintf("copied %d module files (%s)", count, humanize.Bytes(uint64(bytes)))
}

// ArtifactCopyError is the structured "copy failure" diagnostic surfaced
// when the artifact-copy phase can't place a built module or library.
type ArtifactCopyError struct {
	Path string
	Err  error
}

func (e *ArtifactCopyError) Error() string {
	return fmt.Sprintf("failed to copy %s: %v", e.Path, e.Err)
}

func (e *ArtifactCopyError) Hints() []string {
	return []string{
		"check permissions on the modules directory",
		"ensure you have enough disk space",
		"try cleaning the modules cache and reinstalling",
	}
}

func (e *ArtifactCopyError) Unwrap() error { return e.Err }
