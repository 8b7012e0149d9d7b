// Package kernel orchestrates a single Swift kernel process: it owns the
// session/cell data model, binds Jupyter requests to the preprocessor,
// REPL supervisor, I/O bridge, installer and diagnostics formatter, and
// persists a record of what ran through the audit store.
package kernel

import (
	"sync"
	"time"

	"swiftkernel/repl"
)

// Cell is one execution unit received from execute_request.
type Cell struct {
	ExecutionCount int
	Source         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Outcome        repl.Outcome
	Stdout         string

	// StoreHistory mirrors the request's store_history flag: whether this
	// cell counted toward the execution counter and landed in Cells/the
	// audit store.
	StoreHistory bool

	// AllowStdin mirrors the request's allow_stdin flag. Recorded for a
	// future readLine()-over-stdin_request bridge; the embedded REPL has no
	// such path yet, so it has no other effect today.
	AllowStdin bool
}

// Session is the in-memory record of a kernel's lifetime: cumulative
// execution counter, cell history, and the state a %reset must clear.
type Session struct {
	mu             sync.Mutex
	ID             string
	StartedAt      time.Time
	executionCount int
	Cells          []*Cell

	// InstalledPackages lists the product names of successfully installed
	// packages, in install order, for display in the admin console.
	InstalledPackages []string

	// CompletionEnabled mirrors %enable_completion / %disable_completion.
	CompletionEnabled bool
}

// NewSession creates a fresh session with completion enabled by default.
func NewSession(id string) *Session {
	return &Session{
		ID:                id,
		StartedAt:         time.Now(),
		CompletionEnabled: true,
	}
}

// NextCell allocates a new cell. When storeHistory is false (a silent
// execute_request, or one that explicitly asked not to be counted), the
// execution counter is left untouched and the cell is not added to Cells,
// matching Jupyter's execute_request contract.
func (s *Session) NextCell(source string, storeHistory bool) *Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	if storeHistory {
		s.executionCount++
	}
	cell := &Cell{
		ExecutionCount: s.executionCount,
		Source:         source,
		StartedAt:      time.Now(),
		StoreHistory:   storeHistory,
	}
	if storeHistory {
		s.Cells = append(s.Cells, cell)
	}
	return cell
}

// ExecutionCount returns the current counter value.
func (s *Session) ExecutionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executionCount
}

// RecordPackage appends a successfully installed package identity.
func (s *Session) RecordPackage(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InstalledPackages = append(s.InstalledPackages, identity)
}

// Reset clears history and the execution counter but leaves
// InstalledPackages intact. Kernel.reset relaunches the REPL process
// alongside it, and the new process does not have the installed libraries
// loaded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executionCount = 0
	s.Cells = nil
}
