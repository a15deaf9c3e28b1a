package engine

import "sync"

// Junction is a connection anchor on a block. Lines attach to a
// block's input or output junction when an Instance is constructed;
// the planner asks a junction whether it has any attached lines to
// decide whether its owning block is a source block.
type Junction struct {
	mu    sync.Mutex
	lines []*Line
}

// NewJunction returns an empty junction.
func NewJunction() *Junction {
	return &Junction{}
}

// HasLines reports whether any line is attached to this junction.
func (j *Junction) HasLines() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.lines) > 0
}

// Lines returns a snapshot of the lines attached to this junction.
func (j *Junction) Lines() []*Line {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Line, len(j.lines))
	copy(out, j.lines)
	return out
}

func (j *Junction) attach(l *Line) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lines = append(j.lines, l)
}
