package engine

import "sync"

// LineState is a line's activation state.
type LineState int

const (
	LineOff LineState = iota
	LineOn
)

func (s LineState) String() string {
	if s == LineOn {
		return "ON"
	}
	return "OFF"
}

// Line is a directed edge between two blocks owned by the same
// Instance. blockFrom/blockTo are borrowing references: the Instance
// owns the blocks, lines never own them.
type Line struct {
	mu sync.Mutex

	from Block
	to   Block

	state    LineState
	modified bool
}

// NewLine constructs a Line between from and to, OFF, and attaches it
// to both blocks' junctions. from and to must belong to the same
// Instance as the line itself; the caller (Instance construction) is
// responsible for that invariant.
func NewLine(from, to Block) *Line {
	l := &Line{from: from, to: to, state: LineOff, modified: true}
	from.OutputJunction().attach(l)
	to.InputJunction().attach(l)
	return l
}

func (l *Line) BlockFrom() Block { return l.from }
func (l *Line) BlockTo() Block   { return l.to }

func (l *Line) State() LineState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Line) SetState(s LineState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == s {
		return
	}
	l.state = s
	l.modified = true
}

// Reset switches the line OFF.
func (l *Line) Reset() {
	l.SetState(LineOff)
}

func (l *Line) IsModified() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modified
}

func (l *Line) ResetModified() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modified = false
}
