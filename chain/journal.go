// Package chain provides the execution environment the settlement engine assumes: an undo journal
// that gives each top-level operation all-or-nothing semantics, and a clock.
package chain

// Journal records undo actions for state mutated during an operation, in the manner of an EVM state
// journal. Every collaborator that holds state (token ledgers, permit nonces, module bookkeeping,
// engine maps) records an undo closure before mutating; reverting a snapshot replays the closures
// in reverse order.
//
// Snapshots nest: an operation that re-enters the engine through a hook opens an inner snapshot, and
// an outer failure still reverts the inner operation's effects. Entries are discarded when the
// outermost snapshot ends successfully. A Journal is not safe for concurrent use.
type Journal struct {
	entries []func()
	depth   int
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Snapshot opens a nested scope and returns its id.
func (j *Journal) Snapshot() int {
	j.depth++
	return len(j.entries)
}

// Record registers undo for the enclosing scope. Outside any scope the mutation is permanent and
// nothing is recorded. A nil journal records nothing.
func (j *Journal) Record(undo func()) {
	if j == nil || j.depth == 0 {
		return
	}
	j.entries = append(j.entries, undo)
}

// End closes the scope opened by Snapshot(id). A non-nil err reverts every mutation recorded since
// the snapshot; err is returned unchanged so End can wrap a return statement.
func (j *Journal) End(id int, err error) error {
	if err != nil {
		j.revert(id)
	}
	j.depth--
	if j.depth == 0 {
		clear(j.entries)
		j.entries = j.entries[:0]
	}
	return err
}

// Active reports whether a scope is open.
func (j *Journal) Active() bool {
	return j != nil && j.depth > 0
}

func (j *Journal) revert(id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
		j.entries[i] = nil
	}
	j.entries = j.entries[:id]
}
