//go:build !unix

package repl

// trapSignaled always reports false on non-unix hosts: without POSIX signal
// semantics a trap-kill and an intentional exit are indistinguishable, so
// both surface as StateExited there.
func trapSignaled(waitErr error) bool {
	return false
}
