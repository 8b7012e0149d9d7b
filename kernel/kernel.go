package kernel

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"swiftkernel/config"
	"swiftkernel/diagnostics"
	"swiftkernel/installer"
	"swiftkernel/iobridge"
	"swiftkernel/kpaths"
	"swiftkernel/logging"
	"swiftkernel/magic"
	"swiftkernel/repl"
	"swiftkernel/store"
)

// hostArch maps Go's GOARCH to the architecture name the debugger's
// target-creation call expects.
func hostArch(goarch string) string {
	if goarch == "amd64" {
		return "x86_64"
	}
	return goarch
}

// Kernel owns every long-lived collaborator for one kernel process: the
// REPL supervisor, the stdout/interrupt bridge, the package installer, the
// audit store, and the session-scoped magic state.
type Kernel struct {
	cfg   *config.Settings
	store *store.Store

	sup    *repl.Supervisor
	dbg    *repl.PTYDebugger
	bridge *iobridge.Bridge
	inst   *installer.Installer

	session *Session
	who     *magic.WhoTracker

	mu                  sync.Mutex
	workspace           *installer.Workspace
	includeSearchPaths  []string
	swiftPMFlags        []string
	librarySearchPath   []string
	moduleSearchPath    []string
	frameworkSearchPath []string
	linkFlags           []string
	extraFlags          []string
	launchEnv           []string
	hasExecutedCode     bool
}

// New wires together one kernel process's collaborators from cfg. st may be
// nil, in which case cell/package audit records are simply not persisted.
func New(cfg *config.Settings, st *store.Store, sessionID string) (*Kernel, error) {
	root := cfg.EffectiveInstallRoot()
	ws, err := installer.EnsureWorkspace(root,
		kpaths.PackageBaseDir(root), kpaths.ModulesDir(root), kpaths.LibsDir(root))
	if err != nil {
		return nil, fmt.Errorf("prepare install workspace: %w", err)
	}

	dbg := repl.NewPTYDebugger()
	sup := repl.NewSupervisor(dbg, cfg.SwiftReplPath, hostArch(runtime.GOARCH))
	bridge := iobridge.New(sup, 20*time.Millisecond)

	inst := installer.New(installer.Options{
		SwiftBuildPath:   cfg.SwiftBuildPath,
		SwiftPackagePath: cfg.SwiftPackagePath,
		Workspace:        ws,
		SwiftPMFlags:     cfg.SwiftPMFlags,
		BuildTimeout:     time.Duration(cfg.BuildTimeoutSeconds) * time.Second,
		LibrarySuffix:    config.DynamicLibrarySuffix(runtime.GOOS),
	})

	k := &Kernel{
		cfg:                 cfg,
		store:               st,
		sup:                 sup,
		dbg:                 dbg,
		bridge:              bridge,
		inst:                inst,
		session:             NewSession(sessionID),
		who:                 magic.NewWhoTracker(),
		workspace:           ws,
		includeSearchPaths:  []string{ws.PackageBase},
		librarySearchPath:   append([]string{}, cfg.LibrarySearchPath...),
		moduleSearchPath:    append([]string{ws.ModulesDir}, cfg.ModuleSearchPath...),
		frameworkSearchPath: append([]string{}, cfg.FrameworkSearchPath...),
	}
	k.refreshLaunchOptions()
	return k, nil
}

// Start launches the embedded REPL and the stdout/interrupt bridge. A
// launch failure leaves the kernel in degraded mode rather than returning
// an error, so kernel_info_reply and preprocessor-only cells keep working.
func (k *Kernel) Start(ctx context.Context) {
	_ = k.sup.Start(ctx)
	k.bridge.Run(k.dbg)
	k.bridge.WatchSignals(ctx)
}

// SetStdoutSink installs the function decoded stdout chunks are forwarded
// to while a cell is executing.
func (k *Kernel) SetStdoutSink(fn iobridge.StdoutFunc) {
	k.bridge.SetStdoutSink(fn)
}

// Degraded reports whether the embedded REPL is unavailable.
func (k *Kernel) Degraded() bool {
	return k.sup.Degraded()
}

// ProcessState reports the embedded REPL's current run state.
func (k *Kernel) ProcessState() repl.ProcessState {
	return k.sup.ProcessState()
}

// SwiftVersion best-effort derives an implementation_version string by
// invoking `swift -version`, falling back to "unknown" on failure so
// kernel_info_reply always has a value to report.
func (k *Kernel) SwiftVersion(ctx context.Context) string {
	version, err := swiftVersion(ctx, k.cfg.SwiftReplPath)
	if err != nil {
		return "unknown"
	}
	return version
}

// Session exposes the in-memory execution history.
func (k *Kernel) Session() *Session {
	return k.session
}

// ExecuteOptions carries the execute_request flags that shape how a cell is
// recorded and reported, alongside the Swift source itself.
type ExecuteOptions struct {
	Silent       bool
	StoreHistory bool
	AllowStdin   bool
}

// ExecuteCell runs the full preprocess-dispatch-execute-persist pipeline
// for one execute_request.
func (k *Kernel) ExecuteCell(ctx context.Context, rawText string, opts ExecuteOptions) *Cell {
	cell := k.session.NextCell(rawText, opts.StoreHistory)
	cell.AllowStdin = opts.AllowStdin
	ctx = logging.WithCell(ctx, cell.ExecutionCount)
	logging.FromContext(ctx).Debug("executing cell", "source_bytes", len(rawText))
	cwd, _ := os.Getwd()

	k.mu.Lock()
	includePaths := append([]string{}, k.includeSearchPaths...)
	k.mu.Unlock()

	parsed, err := magic.Preprocess(cell.ExecutionCount, rawText, cwd, includePaths)
	if err != nil {
		cell.Outcome = repl.Outcome{Kind: repl.PreprocessError, Message: err.Error()}
		k.finishCell(ctx, cell)
		return cell
	}

	pending := &pendingInstall{}
	var out []string
	for _, d := range parsed.Directives {
		if err := k.applyDirective(ctx, d, pending, &out); err != nil {
			cell.Outcome = repl.Outcome{Kind: repl.PreprocessError, Message: err.Error()}
			k.finishCell(ctx, cell)
			return cell
		}
	}

	if len(pending.specs) > 0 {
		if err := k.runInstall(ctx, pending.specs, &out); err != nil {
			cell.Outcome = repl.Outcome{Kind: repl.RuntimeError, Message: err.Error(), Fatal: false}
			k.finishCell(ctx, cell)
			return cell
		}
	}

	if err := k.applyFileDirectives(parsed, &out); err != nil {
		cell.Outcome = repl.Outcome{Kind: repl.PreprocessError, Message: err.Error()}
		k.finishCell(ctx, cell)
		return cell
	}

	residual := strings.TrimSpace(parsed.ResidualSwift)
	switch {
	case residual != "":
		var outcome repl.Outcome
		k.bridge.BeginExecution()
		if hasDirective(parsed.Directives, magic.KindTimeIt) {
			min, mean, max, iterations, timedOutcome := k.sup.TimeIt(ctx, parsed.SourceLocationDirective(), parsed.ResidualSwift, timeItMinTotal, timeItMaxIterations)
			if timedOutcome.Kind == repl.SuccessValue || timedOutcome.Kind == repl.SuccessVoid {
				out = append(out, repl.FormatTimeIt(min, mean, max, iterations))
			}
			outcome = timedOutcome
		} else {
			outcome = k.sup.Execute(ctx, parsed.SourceLocationDirective(), parsed.ResidualSwift)
		}
		k.bridge.EndExecution()

		if outcome.Kind == repl.SuccessValue || outcome.Kind == repl.SuccessVoid {
			k.mu.Lock()
			k.hasExecutedCode = true
			k.mu.Unlock()
		}

		if outcome.Kind == repl.CompileError || outcome.Kind == repl.RuntimeError {
			rec := diagnostics.Format(outcome)
			outcome.Message = rec.Message
			outcome.Hints = rec.Hints
		} else {
			k.who.Observe(parsed.ResidualSwift)
		}
		cell.Outcome = outcome
		cell.Stdout = strings.Join(out, "\n")

	case len(out) > 0:
		cell.Outcome = repl.Outcome{Kind: repl.SuccessVoid}
		cell.Stdout = strings.Join(out, "\n")

	default:
		cell.Outcome = repl.Outcome{Kind: repl.SuccessVoid}
	}

	k.finishCell(ctx, cell)
	return cell
}

const (
	timeItMinTotal      = time.Second
	timeItMaxIterations = 10000
)

func hasDirective(directives []magic.Directive, kind magic.Kind) bool {
	for _, d := range directives {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// applyFileDirectives handles %load and %save, which need the fully
// separated residual Swift source and so cannot run inside applyDirective's
// per-directive dispatch.
func (k *Kernel) applyFileDirectives(parsed *magic.Cell, out *[]string) error {
	for _, d := range parsed.Directives {
		switch d.Kind {
		case magic.KindLoad:
			if len(d.Args) != 1 {
				return fmt.Errorf("%%load requires exactly one file path")
			}
			data, err := os.ReadFile(d.Args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", d.Args[0], err)
			}
			parsed.ResidualSwift = string(data) + "\n" + parsed.ResidualSwift
		case magic.KindSave:
			if len(d.Args) != 1 {
				return fmt.Errorf("%%save requires exactly one file path")
			}
			if err := os.WriteFile(d.Args[0], []byte(k.historySource()), 0644); err != nil {
				return fmt.Errorf("save %s: %w", d.Args[0], err)
			}
			*out = append(*out, fmt.Sprintf("saved session history to %s", d.Args[0]))
		}
	}
	return nil
}

func (k *Kernel) runInstall(ctx context.Context, specs []installer.PackageSpec, out *[]string) error {
	k.mu.Lock()
	already := k.hasExecutedCode
	extra := append([]string{}, k.swiftPMFlags...)
	k.mu.Unlock()
	if already {
		return &installer.InstallOrderError{}
	}
	k.inst.SetExtraSwiftPMFlags(extra)

	before := len(k.inst.Products)
	if err := k.inst.Install(ctx, specs, k.sup, func(msg string) { *out = append(*out, msg) }); err != nil {
		return err
	}

	for _, p := range k.inst.Products[before:] {
		k.session.RecordPackage(p.Product)
		if k.store != nil {
			_ = k.store.RecordPackage(ctx, store.InstalledPackageRecord{
				SessionID:   k.session.ID,
				Product:     p.Product,
				Dependency:  p.Dependency,
				Fingerprint: p.Fingerprint,
				CreatedAt:   p.InstalledAt,
			})
		}
	}
	return nil
}

func (k *Kernel) finishCell(ctx context.Context, cell *Cell) {
	cell.FinishedAt = time.Now()
	logging.FromContext(ctx).Debug("cell finished", "outcome", cell.Outcome.Kind.String())
	if k.store == nil || !cell.StoreHistory {
		return
	}
	_ = k.store.RecordCell(ctx, store.CellRecord{
		SessionID:      k.session.ID,
		ExecutionCount: cell.ExecutionCount,
		Source:         cell.Source,
		Outcome:        cell.Outcome.Kind.String(),
		Message:        cell.Outcome.Message,
		CreatedAt:      cell.FinishedAt,
	})
}

func (k *Kernel) reset(ctx context.Context) error {
	if err := k.sup.Restart(ctx); err != nil {
		return err
	}
	k.session.Reset()
	k.who.Reset()
	k.mu.Lock()
	k.hasExecutedCode = false
	k.mu.Unlock()
	return nil
}

func (k *Kernel) relocateWorkspace(path string) error {
	root := kpaths.ExpandPath(path)
	ws, err := installer.EnsureWorkspace(root,
		kpaths.PackageBaseDir(root), kpaths.ModulesDir(root), kpaths.LibsDir(root))
	if err != nil {
		return fmt.Errorf("relocate workspace: %w", err)
	}
	k.mu.Lock()
	k.workspace = ws
	k.includeSearchPaths = append(k.includeSearchPaths, ws.PackageBase)
	k.moduleSearchPath = append(k.moduleSearchPath, ws.ModulesDir)
	k.mu.Unlock()
	k.inst.SetWorkspace(ws)
	k.refreshLaunchOptions()
	return nil
}

// refreshLaunchOptions translates the accumulated search-path and flag
// state into the REPL invocation's CLI arguments and environment, applied
// on the next Start/Restart.
func (k *Kernel) refreshLaunchOptions() {
	k.mu.Lock()
	var args []string
	for _, p := range k.moduleSearchPath {
		args = append(args, "-I", p)
	}
	for _, p := range k.librarySearchPath {
		args = append(args, "-L", p)
	}
	for _, p := range k.frameworkSearchPath {
		args = append(args, "-F", p)
	}
	for _, l := range k.linkFlags {
		args = append(args, "-l"+l)
	}
	args = append(args, k.extraFlags...)
	env := append([]string{}, k.launchEnv...)
	k.mu.Unlock()
	k.sup.SetLaunchOptions(args, env)
}

// Complete answers a complete_request, honoring the execution-in-progress
// gate and the %disable_completion session operator.
func (k *Kernel) Complete(ctx context.Context, prefix string, cursorPos int) (matches []string, cursorStart, cursorEnd int) {
	if !k.session.CompletionEnabled || !k.bridge.CompletionGate() {
		return nil, cursorPos, cursorPos
	}
	matches, cursorStart, cursorEnd, _ = k.sup.Complete(ctx, prefix, cursorPos)
	return matches, cursorStart, cursorEnd
}

// Interrupt issues the message-based interrupt path.
func (k *Kernel) Interrupt() {
	k.bridge.Interrupt()
}

// Shutdown tears down the bridge and the embedded REPL process.
func (k *Kernel) Shutdown() error {
	k.bridge.Stop()
	k.bridge.StopSignalWatch()
	return k.sup.Shutdown()
}
