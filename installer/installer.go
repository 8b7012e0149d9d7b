package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"swiftkernel/logging"
	"swiftkernel/repl"
)

// InstallOrderError is raised when an install directive arrives after
// Swift source has already executed successfully in the session — installs
// must come before any residual code runs.
type InstallOrderError struct{}

func (e *InstallOrderError) Error() string {
	return "package installs must occur before any Swift code has executed in this session; restart the kernel to install more packages"
}

func (e *InstallOrderError) Hints() []string {
	return []string{
		"the synthetic build copies flags and module search paths the REPL receives only at startup",
		"restart the kernel, then run install directives before any other code",
	}
}

// InstalledPackageRecord is one installed-package audit entry: keyed
// by product name, storing the dependency spec, an artifact fingerprint,
// and the resolved extra include paths. The loaded shared-library handle
// itself is not tracked since dynamically loaded libraries are never
// closed.
type InstalledPackageRecord struct {
	Product       string
	Dependency    string
	Fingerprint   string
	ExtraIncludes []string
	InstalledAt   time.Time
}

// Options configures one Installer instance.
type Options struct {
	SwiftBuildPath      string
	SwiftPackagePath    string
	Workspace           *Workspace
	SwiftPMFlags        []string
	ExtraIncludeCommand string
	BuildTimeout        time.Duration
	LibrarySuffix       string
}

// Installer drives the five-phase install protocol against a shared
// package_base, accumulating dependencies across successive install
// directives.
type Installer struct {
	opts      Options
	baseFlags []string
	specs     []PackageSpec
	Products  []InstalledPackageRecord
}

// New builds an Installer with the given options.
func New(opts Options) *Installer {
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 600 * time.Second
	}
	if opts.LibrarySuffix == "" {
		opts.LibrarySuffix = ".so"
	}
	return &Installer{opts: opts, baseFlags: append([]string{}, opts.SwiftPMFlags...)}
}

// SetExtraSwiftPMFlags replaces the flags contributed by %install-swiftpm-flags
// and %install-extra-include-command, layering them on top of the
// configuration-supplied base flags rather than accumulating duplicates
// across successive install directives.
func (in *Installer) SetExtraSwiftPMFlags(extra []string) {
	in.opts.SwiftPMFlags = append(append([]string{}, in.baseFlags...), extra...)
}

// SetWorkspace redirects future installs to ws, for %install-location.
func (in *Installer) SetWorkspace(ws *Workspace) {
	in.opts.Workspace = ws
}

// Install runs the five install phases for the given specs (added
// to any previously requested specs), reporting progress via onProgress.
// The final phase loads the freshly built shared library into sup's
// running process.
func (in *Installer) Install(ctx context.Context, specs []PackageSpec, sup *repl.Supervisor, onProgress ProgressFunc) error {
	in.specs = append(in.specs, specs...)
	ws := in.opts.Workspace

	onProgress("Progress: Step 1/5 — creating Package.swift")
	if err := WriteManifest(ws.PackageBase, in.specs); err != nil {
		return err
	}

	onProgress("Progress: Step 2/5 — resolving and fetching dependencies (this may take a while)")
	onProgress("Progress: Step 3/5 — building packages")
	if buildErr := RunBuild(ctx, in.opts.SwiftBuildPath, ws.PackageBase, in.opts.SwiftPMFlags, in.opts.BuildTimeout, onProgress); buildErr != nil {
		if _, dbErr := FindBuildDB("", ws.PackageBase); dbErr != nil {
			logging.Logger.Error("package build failed", "error", buildErr)
			return buildErr
		}
		onProgress("swift-build exited nonzero but build.db is present; continuing with whatever artifacts resolved")
	}

	binDir, err := ShowBinPath(ctx, in.opts.SwiftBuildPath, ws.PackageBase, in.opts.SwiftPMFlags)
	if err != nil {
		return err
	}
	libPath := filepath.Join(binDir, "libjupyterInstalledPackages"+in.opts.LibrarySuffix)

	onProgress("Progress: Step 4/5 — copying Swift modules to kernel")
	if err := in.copyArtifacts(ctx, binDir, ws, onProgress); err != nil {
		return err
	}

	onProgress("Progress: Step 5/5 — loading packages into the Swift REPL")
	if err := Load(ctx, sup, libPath); err != nil {
		return err
	}

	for _, spec := range specs {
		fp, ferr := hashstructure.Hash(spec, hashstructure.FormatV2, nil)
		fingerprint := ""
		if ferr == nil {
			fingerprint = fmt.Sprintf("%x", fp)
		}
		for _, product := range spec.Products {
			in.Products = append(in.Products, InstalledPackageRecord{
				Product:     product,
				Dependency:  spec.Dependency,
				Fingerprint: fingerprint,
				InstalledAt: time.Now(),
			})
		}
	}

	names := productNames(specs)
	onProgress(fmt.Sprintf("Successfully installed: %s", joinNames(names)))
	return nil
}

func (in *Installer) copyArtifacts(ctx context.Context, binDir string, ws *Workspace, onProgress ProgressFunc) error {
	buildDB, err := FindBuildDB(binDir, ws.PackageBase)
	if err != nil {
		return err
	}

	depPaths, err := DependencyPaths(ctx, in.opts.SwiftPackagePath, ws.PackageBase)
	if err != nil {
		return err
	}
	depPaths = append(depPaths, ws.PackageBase)

	modules, err := QueryBuildFiles(buildDB, "%.swiftmodule")
	if err != nil {
		return err
	}
	modules = filterUnderPaths(modules, depPaths)

	docs, err := QueryBuildFiles(buildDB, "%.swiftdoc")
	if err == nil {
		modules = append(modules, filterUnderPaths(docs, depPaths)...)
	}
	interfaces, err := QueryBuildFiles(buildDB, "%.swiftinterface")
	if err == nil {
		modules = append(modules, filterUnderPaths(interfaces, depPaths)...)
	}

	bytesCopied, err := CopySwiftModules(modules, ws.ModulesDir)
	if err != nil {
		return err
	}
	onProgress(FormatCopied(len(modules), bytesCopied))

	modulemaps, err := QueryBuildFiles(buildDB, "%/module.modulemap")
	if err != nil {
		return err
	}
	modulemaps = filterUnderPaths(modulemaps, depPaths)
	return CopyModuleMaps(modulemaps, ws.ModulesDir)
}

func productNames(specs []PackageSpec) []string {
	var names []string
	for _, s := range specs {
		names = append(names, s.Products...)
	}
	return names
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
