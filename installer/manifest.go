// Package installer implements the package installer: it
// synthesizes a throwaway SwiftPM package, builds it out-of-process,
// relocates its module artifacts into a directory the REPL already
// watches, and dynamically loads its shared library into the running
// process so `import <Product>` starts resolving.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PackageSpec is one requested dependency plus the products to link against.
type PackageSpec struct {
	Dependency string   // e.g. `.package(url: "...", branch: "main")`
	Products   []string
}

const manifestTemplate = `// swift-tools-version:5.5
import PackageDescription

let package = Package(
    name: "jupyterInstalledPackages",
    products: [
        .library(name: "jupyterInstalledPackages", type: .dynamic, targets: ["jupyterInstalledPackages"]),
    ],
    dependencies: [
%s    ],
    targets: [
        .target(
            name: "jupyterInstalledPackages",
            dependencies: [
%s            ],
            path: ".",
            sources: ["jupyterInstalledPackages.swift"]
        ),
    ]
)
`

// WriteManifest synthesizes Package.swift and its blank target source into
// dir. The manifest schema version is new enough to
// allow branch-based dependencies.5.
func WriteManifest(dir string, specs []PackageSpec) error {
	var deps, products strings.Builder
	for _, s := range specs {
		fmt.Fprintf(&deps, "        %s,\n", s.Dependency)
		for _, p := range s.Products {
			fmt.Fprintf(&products, "                %q,\n", p)
		}
	}

	manifest := fmt.Sprintf(manifestTemplate, deps.String(), products.String())
	if err := os.WriteFile(filepath.Join(dir, "Package.swift"), []byte(manifest), 0644); err != nil {
		return fmt.Errorf("write Package.swift: %w", err)
	}
	blank := "// intentionally blank\n"
	if err := os.WriteFile(filepath.Join(dir, "jupyterInstalledPackages.swift"), []byte(blank), 0644); err != nil {
		return fmt.Errorf("write target source: %w", err)
	}
	return nil
}
