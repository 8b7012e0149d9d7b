package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftkernel/magic"
)

func TestParseInstallArgs_RequiresDependencyAndProduct(t *testing.T) {
	_, err := parseInstallArgs([]string{".package(path: \"a\")"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one product name")
}

func TestParseInstallArgs_Valid(t *testing.T) {
	spec, err := parseInstallArgs([]string{".package(path: \"a\")", "Logging", "LoggingHandler"})
	require.NoError(t, err)
	assert.Equal(t, `.package(path: "a")`, spec.Dependency)
	assert.Equal(t, []string{"Logging", "LoggingHandler"}, spec.Products)
}

func TestEnvSummary_Empty(t *testing.T) {
	assert.Equal(t, "no additional environment variables configured", envSummary(nil))
}

func TestEnvSummary_JoinsEntries(t *testing.T) {
	assert.Equal(t, "FOO=bar\nBAZ=qux", envSummary([]string{"FOO=bar", "BAZ=qux"}))
}

func TestHelpText_MentionsLsMagic(t *testing.T) {
	assert.Contains(t, helpText(), "%lsmagic")
}

func TestApplyDirective_SystemAllowedBeforeAnyExecution(t *testing.T) {
	k := &Kernel{}
	var out []string
	err := k.applyDirective(context.Background(), magic.Directive{Kind: magic.KindSystem, Args: []string{"echo", "hi"}}, &pendingInstall{}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "hi")
}

func TestApplyDirective_SystemRejectedAfterCodeHasExecuted(t *testing.T) {
	k := &Kernel{hasExecutedCode: true}
	var out []string
	err := k.applyDirective(context.Background(), magic.Directive{Kind: magic.KindSystem, Args: []string{"echo", "hi"}}, &pendingInstall{}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first cell")
	assert.Empty(t, out)
}
