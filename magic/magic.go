// Package magic implements the cell preprocessor: splitting
// magic directives from residual Swift source, dispatching session
// operators, and injecting the source-location directive each cell needs
// for diagnostics to reference the coordinate the user sees.
package magic

import (
	"fmt"
	"os"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// Kind tags a recognized directive.
type Kind int

const (
	KindInstall Kind = iota
	KindInstallSwiftPMFlags
	KindInstallExtraIncludeCommand
	KindInstallLocation
	KindInclude
	KindSwiftLibraryPath
	KindSwiftModulePath
	KindSwiftFrameworkPath
	KindSwiftLink
	KindSwiftFlags
	KindSwiftEnv
	KindSwiftConfig
	KindSwiftIRSetup
	KindHelp
	KindLsMagic
	KindWho
	KindReset
	KindTimeIt
	KindEnv
	KindSwiftVersion
	KindLoad
	KindSave
	KindHistory
	KindEnableCompletion
	KindDisableCompletion
	KindSystem
)

// names maps the magic token (without its leading %) to its Kind. %system
// runs a shell command and captures its combined stdout and stderr, mirroring the
// *install-extra-include-command* mechanism already in scope.
var names = map[string]Kind{
	"install":                       KindInstall,
	"install-swiftpm-flags":         KindInstallSwiftPMFlags,
	"install-extra-include-command": KindInstallExtraIncludeCommand,
	"install-location":              KindInstallLocation,
	"include":                       KindInclude,
	"swift_library_path":            KindSwiftLibraryPath,
	"swift_module_path":             KindSwiftModulePath,
	"swift_framework_path":          KindSwiftFrameworkPath,
	"swift_link":                    KindSwiftLink,
	"swift_flags":                   KindSwiftFlags,
	"swift_env":                     KindSwiftEnv,
	"swift_config":                  KindSwiftConfig,
	"swiftir_setup":                 KindSwiftIRSetup,
	"help":                          KindHelp,
	"lsmagic":                       KindLsMagic,
	"who":                           KindWho,
	"reset":                         KindReset,
	"timeit":                        KindTimeIt,
	"env":                           KindEnv,
	"swift-version":                 KindSwiftVersion,
	"load":                          KindLoad,
	"save":                          KindSave,
	"history":                       KindHistory,
	"enable_completion":             KindEnableCompletion,
	"disable_completion":            KindDisableCompletion,
	"system":                        KindSystem,
}

// installClass holds the kinds restricted to "at most one
// install-class directive per cell".
var installClass = map[Kind]bool{
	KindInstall:                    true,
	KindInstallSwiftPMFlags:        true,
	KindInstallExtraIncludeCommand: true,
	KindInstallLocation:            true,
}

// Directive is one parsed magic line.
type Directive struct {
	Kind Kind
	Name string
	Args []string
	Raw  string
}

// Cell is the preprocessor's output: the extracted directives plus the
// residual Swift source, with its synthetic file name for diagnostics.
type Cell struct {
	ExecutionCount int
	FileName       string // "<cell N>"
	Directives     []Directive
	ResidualSwift  string
}

// SourceLocationDirective returns the compiler pragma naming the cell's
// synthetic file, starting at line 1.
func (c *Cell) SourceLocationDirective() string {
	return fmt.Sprintf("#sourceLocation(file: %q, line: 1)\n", c.FileName)
}

// Error is a preprocessor error: detected
// before any code reaches the debugger.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Preprocess splits rawText into directives and residual Swift. cwd
// substitutes "$cwd" occurrences in every directive's arguments with
// the process working directory, a supplemental convenience.
func Preprocess(executionCount int, rawText, cwd string, includeSearchPaths []string) (*Cell, error) {
	cell := &Cell{
		ExecutionCount: executionCount,
		FileName:       fmt.Sprintf("<cell %d>", executionCount),
	}

	var residual []string
	seenInstallClass := false

	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "%") {
			residual = append(residual, line)
			continue
		}

		directive, err := parseDirective(trimmed, cwd)
		if err != nil {
			return nil, err
		}

		if installClass[directive.Kind] {
			if seenInstallClass {
				return nil, &Error{Message: "at most one install-class directive is allowed per cell"}
			}
			seenInstallClass = true
		}

		if directive.Kind == KindInclude {
			spliced, err := resolveInclude(directive.Args, includeSearchPaths)
			if err != nil {
				return nil, err
			}
			residual = append(residual, spliced)
			continue
		}

		cell.Directives = append(cell.Directives, directive)
	}

	cell.ResidualSwift = strings.Join(residual, "\n")
	return cell, nil
}

func parseDirective(line, cwd string) (Directive, error) {
	body := strings.TrimPrefix(line, "%")
	tokens, err := shlex.Split(body, true)
	if err != nil || len(tokens) == 0 {
		return Directive{}, &Error{Message: fmt.Sprintf("malformed magic directive: %q", line)}
	}

	name := tokens[0]
	kind, ok := names[name]
	if !ok {
		return Directive{}, &Error{Message: fmt.Sprintf("unrecognized magic: %%%s", name)}
	}

	args := tokens[1:]
	for i, a := range args {
		args[i] = expandCwd(a, cwd)
	}

	return Directive{Kind: kind, Name: name, Args: args, Raw: line}, nil
}

// expandCwd substitutes $cwd/${cwd} references the way the LLDB-driven
// stand-in's install-location and dependency-clause parsing does, via
// string.Template(...).substitute({"cwd": os.getcwd()}). Any other
// variable reference is left as a literal $name, since nothing besides
// cwd is ever substituted here.
func expandCwd(s, cwd string) string {
	return os.Expand(s, func(name string) string {
		if name == "cwd" {
			return cwd
		}
		return "$" + name
	})
}

// LsMagic lists all recognized magic names, for the %lsmagic session
// operator.
func LsMagic() []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	return out
}
