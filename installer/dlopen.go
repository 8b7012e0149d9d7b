package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"swiftkernel/repl"
)

// DlopenModule returns the platform-appropriate module dlopen/RTLD_NOW are
// imported from: Darwin on macOS, Glibc elsewhere.
func DlopenModule(goos string) string {
	if goos == "darwin" {
		return "Darwin"
	}
	return "Glibc"
}

// DynamicLoadCode generates the Swift snippet that dlopen's libPath with
// lazy binding (RTLD_LAZY) combined with RTLD_GLOBAL for cross-library
// symbol visibility.
func DynamicLoadCode(libPath string) string {
	module := DlopenModule(runtime.GOOS)
	encoded, _ := json.Marshal(libPath)
	return fmt.Sprintf(
		"import func %s.dlopen\nimport var %s.RTLD_LAZY\nimport var %s.RTLD_GLOBAL\ndlopen(%s, RTLD_LAZY | RTLD_GLOBAL)\n",
		module, module, module, string(encoded))
}

// DlopenLoadFailedError is raised when dlopen evaluates but returns nil.
type DlopenLoadFailedError struct {
	LibPath string
}

func (e *DlopenLoadFailedError) Error() string {
	return fmt.Sprintf("dlopen(%q) returned nil", e.LibPath)
}

func (e *DlopenLoadFailedError) Hints() []string {
	return []string{
		"run String(cString: dlerror()) in the REPL for the detailed reason",
		"missing or incompatible system libraries can cause this",
		"symbol conflicts with a previously loaded package can cause this",
		"restarting the kernel and reinstalling often clears stale state",
	}
}

// Load submits the dynamic-load snippet through sup and interprets the
// result.5 phase 5's success/failure contract.
func Load(ctx context.Context, sup *repl.Supervisor, libPath string) error {
	code := DynamicLoadCode(libPath)
	outcome := sup.Execute(ctx, "", code)
	if outcome.Kind != repl.SuccessValue {
		return fmt.Errorf("failed to load shared library %s: %s", libPath, outcome.Message)
	}
	if len(outcome.Value.Summary) >= 3 && outcome.Value.Summary[len(outcome.Value.Summary)-3:] == "nil" {
		return &DlopenLoadFailedError{LibPath: libPath}
	}
	return nil
}
