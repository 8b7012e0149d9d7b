package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetExtraSwiftPMFlags_LayersOverBaseWithoutDuplication(t *testing.T) {
	in := New(Options{SwiftPMFlags: []string{"--verbose"}})

	in.SetExtraSwiftPMFlags([]string{"-Xswiftc", "-DFOO"})
	assert.Equal(t, []string{"--verbose", "-Xswiftc", "-DFOO"}, in.opts.SwiftPMFlags)

	// a second call replaces the extras rather than appending to them.
	in.SetExtraSwiftPMFlags([]string{"-Xswiftc", "-DBAR"})
	assert.Equal(t, []string{"--verbose", "-Xswiftc", "-DBAR"}, in.opts.SwiftPMFlags)
}

func TestSetWorkspace_Redirects(t *testing.T) {
	in := New(Options{})
	ws := &Workspace{Root: "/tmp/ws"}
	in.SetWorkspace(ws)
	assert.Same(t, ws, in.opts.Workspace)
}

func TestProductNames(t *testing.T) {
	specs := []PackageSpec{
		{Products: []string{"A", "B"}},
		{Products: []string{"C"}},
	}
	assert.Equal(t, []string{"A", "B", "C"}, productNames(specs))
}

func TestJoinNames(t *testing.T) {
	assert.Equal(t, "A, B, C", joinNames([]string{"A", "B", "C"}))
	assert.Equal(t, "A", joinNames([]string{"A"}))
	assert.Equal(t, "", joinNames(nil))
}
