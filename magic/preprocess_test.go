package magic

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess_ResidualOnly(t *testing.T) {
	cell, err := Preprocess(1, "let x = 1\nprint(x)", "/tmp", nil)
	require.NoError(t, err)
	assert.Empty(t, cell.Directives)
	assert.Equal(t, "let x = 1\nprint(x)", cell.ResidualSwift)
	assert.Equal(t, "<cell 1>", cell.FileName)
}

func TestPreprocess_SingleDirective(t *testing.T) {
	cell, err := Preprocess(2, "%swift_flags -Ounchecked\nprint(1)", "/tmp", nil)
	require.NoError(t, err)
	require.Len(t, cell.Directives, 1)
	assert.Equal(t, KindSwiftFlags, cell.Directives[0].Kind)
	assert.Equal(t, []string{"-Ounchecked"}, cell.Directives[0].Args)
	assert.Equal(t, "print(1)", cell.ResidualSwift)
}

func TestPreprocess_UnrecognizedMagic(t *testing.T) {
	_, err := Preprocess(1, "%bogus", "/tmp", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized magic")
}

func TestPreprocess_AtMostOneInstallClassDirective(t *testing.T) {
	src := "%install .package(path: \"a\")\n%install-swiftpm-flags --verbose"
	_, err := Preprocess(1, src, "/tmp", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most one install-class directive")
}

func TestPreprocess_RejectsTwoInstallLocationDirectives(t *testing.T) {
	// two directives of the same install-class kind still count as more than one.
	src := "%install-location /tmp/a\n%install-location /tmp/b"
	_, err := Preprocess(1, src, "/tmp", nil)
	require.Error(t, err)
}

func TestPreprocess_CwdSubstitution(t *testing.T) {
	cell, err := Preprocess(1, "%swift_library_path $cwd/libs", "/work", nil)
	require.NoError(t, err)
	require.Len(t, cell.Directives, 1)
	assert.Equal(t, []string{"/work/libs"}, cell.Directives[0].Args)
}

func TestPreprocess_BracedCwdSubstitution(t *testing.T) {
	cell, err := Preprocess(1, "%swift_library_path ${cwd}/libs", "/work", nil)
	require.NoError(t, err)
	require.Len(t, cell.Directives, 1)
	assert.Equal(t, []string{"/work/libs"}, cell.Directives[0].Args)
}

func TestPreprocess_IncludeSplicesInline(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/helper.swift", []byte("func helper() {}\n"), 0644))

	cell, err := Preprocess(1, "%include helper.swift\nhelper()", "/tmp", []string{dir})
	require.NoError(t, err)
	assert.Empty(t, cell.Directives)
	assert.Contains(t, cell.ResidualSwift, "func helper() {}")
	assert.Contains(t, cell.ResidualSwift, "helper()")
}

func TestPreprocess_IncludeMissingFile(t *testing.T) {
	_, err := Preprocess(1, "%include nope.swift", "/tmp", []string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in search path")
}

func TestSourceLocationDirective(t *testing.T) {
	cell := &Cell{FileName: "<Cell 7>"}
	assert.Equal(t, `#sourceLocation(file: "<Cell 7>", line: 1)`+"\n", cell.SourceLocationDirective())
}

func TestLsMagic_ContainsKnownDirectives(t *testing.T) {
	names := LsMagic()
	assert.Contains(t, names, "install")
	assert.Contains(t, names, "swift_flags")
	assert.Contains(t, names, "timeit")
}
