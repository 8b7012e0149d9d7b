package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftkernel/magic"
)

func TestHostArch(t *testing.T) {
	assert.Equal(t, "x86_64", hostArch("amd64"))
	assert.Equal(t, "arm64", hostArch("arm64"))
}

func TestHasDirective(t *testing.T) {
	directives := []magic.Directive{{Kind: magic.KindHelp}, {Kind: magic.KindTimeIt}}
	assert.True(t, hasDirective(directives, magic.KindTimeIt))
	assert.False(t, hasDirective(directives, magic.KindReset))
}

func TestApplyFileDirectives_LoadSplicesIntoResidualSwift(t *testing.T) {
	dir := t.TempDir()
	loadPath := filepath.Join(dir, "in.swift")
	require.NoError(t, os.WriteFile(loadPath, []byte("let x = 1"), 0644))

	k := &Kernel{session: NewSession("sess-1")}
	parsed := &magic.Cell{
		ResidualSwift: "let y = 2",
		Directives:    []magic.Directive{{Kind: magic.KindLoad, Args: []string{loadPath}}},
	}
	var out []string
	require.NoError(t, k.applyFileDirectives(parsed, &out))

	assert.Equal(t, "let x = 1\nlet y = 2", parsed.ResidualSwift)
}

func TestApplyFileDirectives_LoadMissingFile(t *testing.T) {
	k := &Kernel{session: NewSession("sess-1")}
	parsed := &magic.Cell{
		Directives: []magic.Directive{{Kind: magic.KindLoad, Args: []string{"/nonexistent/path.swift"}}},
	}
	var out []string
	err := k.applyFileDirectives(parsed, &out)
	require.Error(t, err)
}

func TestApplyFileDirectives_SaveWritesSessionHistory(t *testing.T) {
	dir := t.TempDir()
	savePath := filepath.Join(dir, "out.swift")

	k := &Kernel{session: NewSession("sess-1")}
	k.session.NextCell("let x = 1", true)
	k.session.NextCell("let y = 2", true)

	parsed := &magic.Cell{
		ResidualSwift: "%save",
		Directives:    []magic.Directive{{Kind: magic.KindSave, Args: []string{savePath}}},
	}
	var out []string
	require.NoError(t, k.applyFileDirectives(parsed, &out))

	saved, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, "let x = 1\nlet y = 2\n", string(saved))
	assert.Contains(t, out[0], savePath)
}
