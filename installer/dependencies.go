package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// dependencyNode mirrors the shape `swift package show-dependencies
// --format json` emits.
type dependencyNode struct {
	Path         string           `json:"path"`
	Dependencies []dependencyNode `json:"dependencies"`
}

// DependencyPaths runs `swift package show-dependencies` in dir and
// flattens the resulting tree into a deduplicated list of checkout paths,
// used to decide which build.db entries belong to this install rather
// than to some unrelated build artifact.
func DependencyPaths(ctx context.Context, packagePath, dir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, packagePath, "show-dependencies", "--format", "json")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("show-dependencies: %w", err)
	}

	var root dependencyNode
	if err := json.Unmarshal(out, &root); err != nil {
		return nil, fmt.Errorf("parse show-dependencies output: %w", err)
	}

	seen := map[string]bool{}
	var paths []string
	var flatten func(dependencyNode)
	flatten = func(n dependencyNode) {
		if n.Path != "" && !seen[n.Path] {
			seen[n.Path] = true
			paths = append(paths, n.Path)
		}
		for _, d := range n.Dependencies {
			flatten(d)
		}
	}
	flatten(root)
	return paths, nil
}
