package magic

import (
	"fmt"
	"os"
	"path/filepath"
)

// resolveInclude reads the file named by args[0] from searchPaths, in
// order, and returns its contents to splice into the residual Swift source.
func resolveInclude(args []string, searchPaths []string) (string, error) {
	if len(args) != 1 {
		return "", &Error{Message: "%include requires exactly one file name"}
	}
	name := args[0]

	if filepath.IsAbs(name) {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", &Error{Message: fmt.Sprintf("%%include: cannot read %q: %v", name, err)}
		}
		return string(data), nil
	}

	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, name)
		data, err := os.ReadFile(candidate)
		if err == nil {
			return string(data), nil
		}
	}
	return "", &Error{Message: fmt.Sprintf("%%include: %q not found in search path", name)}
}
