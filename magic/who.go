package magic

import "regexp"

// declarationRe matches let/var/func/struct/class declarations anywhere in
// the source, including ones nested inside other declarations.
// %who is a best-effort textual tracker, not a true symbol table, so a
// single regex scan is the right level of fidelity rather than a real
// parser.
var declarationRe = regexp.MustCompile(`\b(let|var|func|struct|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// WhoTracker accumulates declaration names observed across a session's
// residual Swift, in first-seen order, for the %who session operator.
type WhoTracker struct {
	order []string
	kind  map[string]string
}

// NewWhoTracker builds an empty tracker.
func NewWhoTracker() *WhoTracker {
	return &WhoTracker{kind: make(map[string]string)}
}

// Observe scans source for declarations and records any not seen before.
func (w *WhoTracker) Observe(source string) {
	for _, m := range declarationRe.FindAllStringSubmatch(source, -1) {
		keyword, name := m[1], m[2]
		if _, seen := w.kind[name]; !seen {
			w.order = append(w.order, name)
			w.kind[name] = keyword
		}
	}
}

// Names returns declarations in first-seen order.
func (w *WhoTracker) Names() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// Kind returns the declaring keyword ("let", "var", "func", ...) for name.
func (w *WhoTracker) Kind(name string) string {
	return w.kind[name]
}

// Reset clears all observed declarations, for %reset.
func (w *WhoTracker) Reset() {
	w.order = nil
	w.kind = make(map[string]string)
}
