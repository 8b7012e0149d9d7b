// Package config resolves kernel configuration from an on-disk
// settings.json (lowest precedence) and a fixed set of environment
// variables (highest precedence).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"swiftkernel/kpaths"
)

// Settings is the merged configuration record for one kernel process.
type Settings struct {
	// REPL binary path: location of the Swift REPL executable driven
	// through the debugger boundary.
	SwiftReplPath string `json:"swift_repl_path,omitempty"`

	// Build subprocess paths.
	SwiftBuildPath   string `json:"swift_build_path,omitempty"`
	SwiftPackagePath string `json:"swift_package_path,omitempty"`

	// Dynamic library search path, prepended during process launch.
	LibrarySearchPath StringArray `json:"library_search_path,omitempty"`

	// Swift module search path override (%swift_module_path).
	ModuleSearchPath StringArray `json:"module_search_path,omitempty"`

	// Framework search path override (%swift_framework_path), macOS only.
	FrameworkSearchPath StringArray `json:"framework_search_path,omitempty"`

	// Build timeout in seconds, default 600.
	BuildTimeoutSeconds int `json:"build_timeout_seconds,omitempty"`

	// Install location override (%install-location); empty means the
	// default under kpaths.InstallRoot().
	InstallLocation string `json:"install_location,omitempty"`

	// Extra SwiftPM flags applied to every install.
	SwiftPMFlags StringArray `json:"swiftpm_flags,omitempty"`

	// Admin console listen address, e.g. "127.0.0.1:2323". Empty disables it.
	AdminAddr string `json:"admin_addr,omitempty"`

	// Audit log database path override.
	AuditDBPath string `json:"audit_db_path,omitempty"`
}

// StringArray unmarshals either a JSON array or a comma-separated string,
// tolerating both forms in settings.json.
type StringArray []string

func (sa *StringArray) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*sa = arr
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*sa = splitCommaSeparated(str)
	return nil
}

func splitCommaSeparated(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load reads settings.json (if present) and then applies environment
// variable overrides, returning a fully-resolved Settings.
func Load() (*Settings, error) {
	s := &Settings{BuildTimeoutSeconds: 600}

	data, err := os.ReadFile(kpaths.SettingsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("invalid settings.json: %w", err)
		}
	}

	applyEnv(s)
	return s, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv("SWIFT_REPL_PATH"); v != "" {
		s.SwiftReplPath = v
	}
	if v := os.Getenv("SWIFT_BUILD_PATH"); v != "" {
		s.SwiftBuildPath = v
	}
	if v := os.Getenv("SWIFT_PACKAGE_PATH"); v != "" {
		s.SwiftPackagePath = v
	}
	if v := os.Getenv("SWIFT_TOOLCHAIN_LIB_PATH"); v != "" {
		s.LibrarySearchPath = append(s.LibrarySearchPath, splitCommaSeparated(v)...)
	}
	if v := os.Getenv("SWIFT_MODULE_SEARCH_PATH"); v != "" {
		s.ModuleSearchPath = append(s.ModuleSearchPath, splitCommaSeparated(v)...)
	}
	if v := os.Getenv("SWIFT_FRAMEWORK_SEARCH_PATH"); v != "" {
		s.FrameworkSearchPath = append(s.FrameworkSearchPath, splitCommaSeparated(v)...)
	}
	if v := os.Getenv("SWIFT_JUPYTER_BUILD_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.BuildTimeoutSeconds = n
		}
	}
	if v := os.Getenv("SWIFTKERNEL_ADMIN_ADDR"); v != "" {
		s.AdminAddr = v
	}
	if v := os.Getenv("SWIFTKERNEL_AUDIT_DB"); v != "" {
		s.AuditDBPath = v
	}
	if s.InstallLocation != "" {
		s.InstallLocation = kpaths.ExpandPath(s.InstallLocation)
	}
}

// EffectiveAuditDBPath returns the configured audit DB path or the default.
func (s *Settings) EffectiveAuditDBPath() string {
	if s.AuditDBPath != "" {
		return s.AuditDBPath
	}
	return kpaths.AuditDBPath()
}

// EffectiveInstallRoot returns the configured install root or the default.
func (s *Settings) EffectiveInstallRoot() string {
	if s.InstallLocation != "" {
		return s.InstallLocation
	}
	return kpaths.InstallRoot()
}

// DynamicLibrarySuffix returns the platform dynamic-linker library suffix:
// `.so` on Linux, `.dylib` on Darwin.
func DynamicLibrarySuffix(goos string) string {
	if goos == "darwin" {
		return ".dylib"
	}
	return ".so"
}
