package kernel

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"swiftkernel/installer"
	"swiftkernel/magic"
)

// pendingInstall accumulates the install-class state a single cell's
// directives contribute, applied to k.inst once the cell finishes parsing.
type pendingInstall struct {
	specs []installer.PackageSpec
}

// applyDirective interprets one parsed magic directive against the kernel's
// session-scoped state. Output meant for the client is appended to out;
// specs meant for an install are appended to pending.
func (k *Kernel) applyDirective(ctx context.Context, d magic.Directive, pending *pendingInstall, out *[]string) error {
	switch d.Kind {
	case magic.KindInstall:
		spec, err := parseInstallArgs(d.Args)
		if err != nil {
			return err
		}
		pending.specs = append(pending.specs, spec)

	case magic.KindInstallSwiftPMFlags:
		k.mu.Lock()
		k.swiftPMFlags = append(k.swiftPMFlags, d.Args...)
		k.mu.Unlock()

	case magic.KindInstallExtraIncludeCommand:
		flags, err := runExtraIncludeCommand(ctx, d.Args)
		if err != nil {
			return err
		}
		k.mu.Lock()
		k.swiftPMFlags = append(k.swiftPMFlags, flags...)
		k.mu.Unlock()

	case magic.KindInstallLocation:
		if len(d.Args) != 1 {
			return fmt.Errorf("%%install-location takes exactly one path argument")
		}
		if err := k.relocateWorkspace(d.Args[0]); err != nil {
			return err
		}

	case magic.KindSwiftLibraryPath:
		k.mu.Lock()
		k.librarySearchPath = append(k.librarySearchPath, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindSwiftModulePath:
		k.mu.Lock()
		k.moduleSearchPath = append(k.moduleSearchPath, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindSwiftFrameworkPath:
		k.mu.Lock()
		k.frameworkSearchPath = append(k.frameworkSearchPath, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindSwiftLink:
		k.mu.Lock()
		k.linkFlags = append(k.linkFlags, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindSwiftFlags:
		k.mu.Lock()
		k.extraFlags = append(k.extraFlags, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindSwiftEnv:
		k.mu.Lock()
		k.launchEnv = append(k.launchEnv, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindSwiftConfig, magic.KindSwiftIRSetup:
		// Advisory-only in this implementation: recorded but only affects a
		// restart, same as the search-path directives.
		k.mu.Lock()
		k.extraFlags = append(k.extraFlags, d.Args...)
		k.mu.Unlock()
		k.refreshLaunchOptions()

	case magic.KindHelp:
		*out = append(*out, helpText())

	case magic.KindLsMagic:
		names := magic.LsMagic()
		*out = append(*out, "Available magics: %"+strings.Join(names, ", %"))

	case magic.KindWho:
		names := k.who.Names()
		if len(names) == 0 {
			*out = append(*out, "no declarations observed yet")
			break
		}
		var b strings.Builder
		for _, n := range names {
			fmt.Fprintf(&b, "%s\t%s\n", k.who.Kind(n), n)
		}
		*out = append(*out, b.String())

	case magic.KindReset:
		if err := k.reset(ctx); err != nil {
			return err
		}
		*out = append(*out, "kernel state reset")

	case magic.KindEnv:
		*out = append(*out, envSummary(k.launchEnv))

	case magic.KindSwiftVersion:
		version, err := swiftVersion(ctx, k.cfg.SwiftReplPath)
		if err != nil {
			return err
		}
		*out = append(*out, version)

	case magic.KindHistory:
		*out = append(*out, k.historySummary())

	case magic.KindEnableCompletion:
		k.session.CompletionEnabled = true

	case magic.KindDisableCompletion:
		k.session.CompletionEnabled = false

	case magic.KindSystem:
		k.mu.Lock()
		already := k.hasExecutedCode
		k.mu.Unlock()
		if already {
			return fmt.Errorf("%%system can only run in the first cell")
		}
		text, err := runSystem(ctx, d.Args)
		if err != nil {
			return err
		}
		*out = append(*out, text)

	case magic.KindLoad, magic.KindSave, magic.KindTimeIt:
		// handled by the caller: %timeit needs the residual source, %load
		// and %save need file I/O rooted at the notebook's cwd.

	default:
		return fmt.Errorf("unhandled magic directive: %%%s", d.Name)
	}
	return nil
}

func parseInstallArgs(args []string) (installer.PackageSpec, error) {
	if len(args) < 2 {
		return installer.PackageSpec{}, fmt.Errorf("%%install requires a dependency clause and at least one product name")
	}
	return installer.PackageSpec{Dependency: args[0], Products: args[1:]}, nil
}

// runExtraIncludeCommand shells out to the %install-extra-include-command
// argument list and treats each whitespace-separated token of its stdout as
// an additional SwiftPM flag, mirroring how pkg-config-style helpers emit
// `-I`/`-L` flags for a dependency's system headers.
func runExtraIncludeCommand(ctx context.Context, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%%install-extra-include-command requires a command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("install-extra-include-command failed: %w", err)
	}
	return strings.Fields(string(out)), nil
}

func runSystem(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%%system requires a command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("system command failed: %w", err)
	}
	return string(out), nil
}

func swiftVersion(ctx context.Context, replPath string) (string, error) {
	if replPath == "" {
		return "", fmt.Errorf("swift repl path is not configured")
	}
	cmd := exec.CommandContext(ctx, replPath, "-version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("swift -version failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func envSummary(env []string) string {
	if len(env) == 0 {
		return "no additional environment variables configured"
	}
	return strings.Join(env, "\n")
}

func helpText() string {
	return "Swift kernel magics: use %lsmagic to list them, %help <name> for details (not yet implemented per-magic)."
}

// historySource concatenates every previously submitted cell's source, in
// execution order, for %save to write out as a replayable Swift script.
func (k *Kernel) historySource() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var b strings.Builder
	for _, c := range k.session.Cells {
		b.WriteString(c.Source)
		b.WriteString("\n")
	}
	return b.String()
}

func (k *Kernel) historySummary() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var b strings.Builder
	for _, c := range k.session.Cells {
		fmt.Fprintf(&b, "[%s] %s\n", strconv.Itoa(c.ExecutionCount), c.Outcome.Kind)
	}
	if b.Len() == 0 {
		return "no cells executed yet"
	}
	return b.String()
}
