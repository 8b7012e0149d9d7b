package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteManifest_IncludesDependenciesAndProducts(t *testing.T) {
	dir := t.TempDir()
	specs := []PackageSpec{
		{Dependency: `.package(url: "https://github.com/apple/swift-log", from: "1.0.0")`, Products: []string{"Logging"}},
	}
	require.NoError(t, WriteManifest(dir, specs))

	data, err := os.ReadFile(filepath.Join(dir, "Package.swift"))
	require.NoError(t, err)
	manifest := string(data)
	assert.Contains(t, manifest, "swift-log")
	assert.Contains(t, manifest, `"Logging"`)

	target, err := os.ReadFile(filepath.Join(dir, "jupyterInstalledPackages.swift"))
	require.NoError(t, err)
	assert.Contains(t, string(target), "intentionally blank")
}

func TestWriteManifest_MultipleSpecs(t *testing.T) {
	dir := t.TempDir()
	specs := []PackageSpec{
		{Dependency: `.package(path: "../a")`, Products: []string{"A"}},
		{Dependency: `.package(path: "../b")`, Products: []string{"B1", "B2"}},
	}
	require.NoError(t, WriteManifest(dir, specs))

	data, err := os.ReadFile(filepath.Join(dir, "Package.swift"))
	require.NoError(t, err)
	manifest := string(data)
	assert.Contains(t, manifest, `"A"`)
	assert.Contains(t, manifest, `"B1"`)
	assert.Contains(t, manifest, `"B2"`)
}
