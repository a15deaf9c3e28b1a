package engine

import (
	"sync"

	"flowforge-engine/internal/ffeerr"
)

// Block is the unit-of-work contract an Instance dispatches against.
// Concrete block implementations are user code; BlockBase exists so
// in-tree implementations such as the test doubles share the lifecycle
// boilerplate without an inheritance chain, composition only. The
// plugin-backed block in internal/registry implements Block directly.
type Block interface {
	InternalBlockID() string
	BlockTypeID() string

	State() RunnableState
	HasError() bool

	Run() error
	Stop()
	Abort()
	Reset()
	SetReady() error

	InputJunction() *Junction
	OutputJunction() *Junction

	SetInputText(text string)
	InputText() string
	SetResultText(text string)
	ResultText() string

	IsModified() bool
	ResetModified()

	AddStateChangeListener(l BlockStateChangeListener)
}

// BlockStateChangeListener is notified when a block's RunnableState
// changes. Concrete block implementations that embed BlockBase get a
// working AddStateChangeListener/notify pair for free.
type BlockStateChangeListener interface {
	OnBlockStateChange(b Block, from, to RunnableState)
}

// BlockBase implements the bookkeeping every Block needs: the shared
// RunnableState machine, the modified flag, input/output junctions,
// and state-change listener fan-out. A concrete block embeds BlockBase
// and supplies its own Run behavior; BlockBase.Run is a no-op step
// that immediately completes, suitable only for blocks with no real
// work (callers normally override Run on the embedding type).
type BlockBase struct {
	mu sync.Mutex

	internalBlockID string
	blockTypeID     string

	state    RunnableState
	hasError bool

	inputText  string
	resultText string

	modified bool

	in  *Junction
	out *Junction

	listeners []BlockStateChangeListener

	// self is the concrete Block embedding this BlockBase, bound via
	// BindSelf so state-change listeners receive a usable reference.
	self Block
}

// NewBlockBase constructs a BlockBase in the READY state.
func NewBlockBase(internalBlockID, blockTypeID string) *BlockBase {
	return &BlockBase{
		internalBlockID: internalBlockID,
		blockTypeID:     blockTypeID,
		state:           Ready,
		modified:        true,
		in:              NewJunction(),
		out:             NewJunction(),
	}
}

// BindSelf records the concrete Block embedding this BlockBase.
// Concrete types must call this once, right after construction, so
// state-change listeners are notified with a usable Block reference.
func (b *BlockBase) BindSelf(self Block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
}

func (b *BlockBase) InternalBlockID() string { return b.internalBlockID }
func (b *BlockBase) BlockTypeID() string     { return b.blockTypeID }

func (b *BlockBase) State() RunnableState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BlockBase) HasError() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasError
}

func (b *BlockBase) InputJunction() *Junction  { return b.in }
func (b *BlockBase) OutputJunction() *Junction { return b.out }

func (b *BlockBase) SetInputText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputText = text
	b.modified = true
}

func (b *BlockBase) InputText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inputText
}

// SetResultText sets the block's result. Once the block is DONE the
// result is frozen until Reset; callers that violate this get
// silently ignored writes.
func (b *BlockBase) SetResultText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Done {
		return
	}
	b.resultText = text
	b.modified = true
}

func (b *BlockBase) ResultText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resultText
}

func (b *BlockBase) IsModified() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modified
}

func (b *BlockBase) ResetModified() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modified = false
}

func (b *BlockBase) AddStateChangeListener(l BlockStateChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// transition moves the block to next, marks it modified, and notifies
// listeners outside the lock.
func (b *BlockBase) transition(next RunnableState) {
	b.mu.Lock()
	prev := b.state
	b.state = next
	b.modified = true
	self := b.self
	listeners := make([]BlockStateChangeListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	if prev == next || self == nil {
		return
	}
	for _, l := range listeners {
		notifyBlockListener(l, self, prev, next)
	}
}

func notifyBlockListener(l BlockStateChangeListener, b Block, from, to RunnableState) {
	defer func() { _ = recover() }()
	l.OnBlockStateChange(b, from, to)
}

// Reset implements the shared reset transition: any -> READY, clears
// the error flag and the result text; the input text is kept.
func (b *BlockBase) Reset() {
	b.mu.Lock()
	b.hasError = false
	b.resultText = ""
	b.mu.Unlock()
	b.transition(Ready)
}

func (b *BlockBase) Stop() {
	b.transition(Stopped)
}

func (b *BlockBase) Abort() {
	b.transition(Aborted)
}

// SetReady transitions DONE|STOPPED|ABORTED -> READY without resetting
// block-local data; fails if the error flag is set; a no-op from any
// other state.
func (b *BlockBase) SetReady() error {
	b.mu.Lock()
	cur := b.state
	hasErr := b.hasError
	b.mu.Unlock()

	if hasErr {
		return ffeerr.New(ffeerr.ConfigurationMismatch, "Block.SetReady", nil)
	}
	if cur == Done || cur == Stopped || cur == Aborted {
		b.transition(Ready)
	}
	return nil
}

// MarkRunning transitions READY -> RUNNING. Embedding types call this
// at the start of their own Run implementation.
func (b *BlockBase) MarkRunning() {
	b.transition(Running)
}

// MarkDone transitions to DONE, freezing ResultText.
func (b *BlockBase) MarkDone() {
	b.transition(Done)
}

// MarkError sets the error flag without changing state, leaving the
// current state as-is for the caller's inspection.
func (b *BlockBase) MarkError() {
	b.mu.Lock()
	b.hasError = true
	b.modified = true
	b.mu.Unlock()
}

// Run is BlockBase's default no-op step: it completes the block
// immediately. Real implementations embed BlockBase and shadow Run.
func (b *BlockBase) Run() error {
	b.MarkRunning()
	b.MarkDone()
	return nil
}
