// Breakpoint table owned by the debug session.
package breakpoint

import (
	"fmt"

	"github.com/pkg/errors"
)

// Location is where a breakpoint lives. It is only displayed and matched,
// never reinterpreted.
type Location struct {
	File     string
	Line     int
	Function string
}

func (l Location) String() string {
	if l.Function != "" {
		return fmt.Sprintf("%s:%d (%s)", l.File, l.Line, l.Function)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Breakpoint is a registered location where execution considers stopping.
type Breakpoint struct {
	ID        int
	Location  Location
	Condition Condition
	Enabled   bool
	HitCount  uint64
}

// Table is the ordered set of breakpoints, keyed by ID.
type Table struct {
	order  []*Breakpoint
	byID   map[int]*Breakpoint
	nextID int
}

// NewTable returns an empty table. IDs handed out by Add start at 1.
func NewTable() *Table {
	return &Table{byID: make(map[int]*Breakpoint), nextID: 1}
}

// Add creates an enabled breakpoint with a fresh ID.
func (t *Table) Add(loc Location, cond Condition) *Breakpoint {
	for t.byID[t.nextID] != nil {
		t.nextID++
	}
	bp := &Breakpoint{ID: t.nextID, Location: loc, Condition: cond, Enabled: true}
	t.nextID++
	t.order = append(t.order, bp)
	t.byID[bp.ID] = bp
	return bp
}

// Insert registers a breakpoint whose ID was assigned elsewhere (by the
// Delve server). The ID must not already be in use.
func (t *Table) Insert(bp *Breakpoint) error {
	if bp == nil {
		return errors.New("nil breakpoint")
	}
	if _, ok := t.byID[bp.ID]; ok {
		return errors.Wrapf(ErrDuplicateID, "breakpoint %d", bp.ID)
	}
	t.order = append(t.order, bp)
	t.byID[bp.ID] = bp
	if bp.ID >= t.nextID {
		t.nextID = bp.ID + 1
	}
	return nil
}

// Get returns the breakpoint with the given ID.
func (t *Table) Get(id int) (*Breakpoint, bool) {
	bp, ok := t.byID[id]
	return bp, ok
}

// Remove deletes the breakpoint with the given ID. Its ID is not handed out
// again by Add.
func (t *Table) Remove(id int) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, bp := range t.order {
		if bp.ID == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the breakpoints in insertion order.
func (t *Table) List() []*Breakpoint {
	out := make([]*Breakpoint, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of breakpoints.
func (t *Table) Len() int {
	return len(t.order)
}
