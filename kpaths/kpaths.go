// Package kpaths resolves the on-disk locations the kernel and installer
// read from and write to: the cache root and its package_base/modules/libs
// layout, the settings file, and the audit database.
package kpaths

import (
	"os"
	"path/filepath"
)

// Home returns SWIFTKERNEL_HOME or ~/.swiftkernel.
func Home() string {
	if home := os.Getenv("SWIFTKERNEL_HOME"); home != "" {
		return ExpandPath(home)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".swiftkernel"
	}
	return filepath.Join(homeDir, ".swiftkernel")
}

// SettingsPath returns $SWIFTKERNEL_HOME/settings.json.
func SettingsPath() string {
	return filepath.Join(Home(), "settings.json")
}

// AuditDBPath returns $SWIFTKERNEL_AUDIT_DB, or $SWIFTKERNEL_HOME/audit.db.
func AuditDBPath() string {
	if db := os.Getenv("SWIFTKERNEL_AUDIT_DB"); db != "" {
		return ExpandPath(db)
	}
	return filepath.Join(Home(), "audit.db")
}

// InstallRoot returns the default build-root path for package installation:
// $SWIFTKERNEL_HOME/install unless overridden by %install-location.
func InstallRoot() string {
	return filepath.Join(Home(), "install")
}

// PackageBaseDir is where the synthesized throwaway SwiftPM package lives.
func PackageBaseDir(root string) string {
	return filepath.Join(root, "package_base")
}

// ModulesDir is where consolidated .swiftmodule/.swiftdoc/.swiftinterface
// artifacts the running REPL is configured to see are copied to.
func ModulesDir(root string) string {
	return filepath.Join(root, "modules")
}

// LibsDir is the libs/ directory of the install layout. The installer
// creates it but does not copy shared libraries into it: it dlopens the
// built library from the build products directory.
func LibsDir(root string) string {
	return filepath.Join(root, "libs")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
