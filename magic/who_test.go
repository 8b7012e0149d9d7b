package magic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhoTracker_ObserveAndNames(t *testing.T) {
	w := NewWhoTracker()
	w.Observe("let x = 1\nfunc greet() {}\nvar y = 2")
	assert.Equal(t, []string{"x", "greet", "y"}, w.Names())
	assert.Equal(t, "let", w.Kind("x"))
	assert.Equal(t, "func", w.Kind("greet"))
}

func TestWhoTracker_DoesNotDuplicateOnReobserve(t *testing.T) {
	w := NewWhoTracker()
	w.Observe("let x = 1")
	w.Observe("let x = 2")
	assert.Equal(t, []string{"x"}, w.Names())
}

func TestWhoTracker_Reset(t *testing.T) {
	w := NewWhoTracker()
	w.Observe("struct Foo {}")
	w.Reset()
	assert.Empty(t, w.Names())
	assert.Equal(t, "", w.Kind("Foo"))
}
