package installer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// FindBuildDB searches the fixed candidate locations for build.db, the
// file SwiftPM writes for build tracking. Presence after a nonzero
// build return means the build actually ran but resolved no artifacts;
// absence after a successful build is a fatal invariant violation, so the
// caller distinguishes those cases itself using this function's error.
func FindBuildDB(binDir, packageBase string) (string, error) {
	candidates := []string{
		filepath.Join(binDir, "..", "build.db"),
		filepath.Join(packageBase, ".build", "build.db"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", &BuildDBMissingError{}
}

// BuildDBMissingError is returned when build.db cannot be found after a
// successful build.
type BuildDBMissingError struct{}

func (e *BuildDBMissingError) Error() string {
	return "build.db is missing from the build directory"
}

func (e *BuildDBMissingError) Hints() []string {
	return []string{
		"this indicates the build may have failed silently",
		"try cleaning the build directory and rebuilding",
		"check that swift-build is working: swift build --help",
		"verify you have write permissions in the install root",
	}
}

// buildFilesQuery is the exact query the build database's key_names table
// answers: keys are stored one leading tag byte plus the path, hence
// SUBSTR(key, 2).
const buildFilesQuery = `SELECT SUBSTR(key, 2) FROM 'key_names' WHERE key LIKE ?`

// QueryBuildFiles opens build.db read-only and returns every recorded file
// path whose name matches the given SQL LIKE pattern (e.g. "%.swiftmodule").
func QueryBuildFiles(buildDBPath, likePattern string) ([]string, error) {
	db, err := sql.Open("sqlite3", "file:"+buildDBPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open build.db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(buildFilesQuery, likePattern)
	if err != nil {
		return nil, fmt.Errorf("query build.db: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan build.db row: %w", err)
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

// filterUnderPaths keeps only entries that fall under one of the given
// dependency roots, checked against `swift package show-dependencies`
// output.
func filterUnderPaths(paths []string, roots []string) []string {
	var out []string
	for _, p := range paths {
		for _, r := range roots {
			if strings.HasPrefix(p, r) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
