package registry

import (
	"sync"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/ffeerr"
	"flowforge-engine/pkg/logger"
)

// pluginBlock is the host-side engine.Block for an instance that lives
// inside a plugin process. Every state-bearing method is forwarded to
// the plugin over RPC by handle; junctions and state-change listeners
// stay host-side since wiring instances together is purely a host
// concern.
type pluginBlock struct {
	mu sync.Mutex

	internalBlockID string
	blockTypeID     string
	handle          string
	service         BlockService
	log             logger.Logger

	lastState engine.RunnableState

	in  *engine.Junction
	out *engine.Junction

	listeners []engine.BlockStateChangeListener
}

func newPluginBlock(internalBlockID, blockTypeID, handle string, service BlockService, log logger.Logger) *pluginBlock {
	return &pluginBlock{
		internalBlockID: internalBlockID,
		blockTypeID:     blockTypeID,
		handle:          handle,
		service:         service,
		log:             log,
		lastState:       engine.Ready,
		in:              engine.NewJunction(),
		out:             engine.NewJunction(),
	}
}

func (b *pluginBlock) InternalBlockID() string { return b.internalBlockID }
func (b *pluginBlock) BlockTypeID() string     { return b.blockTypeID }

func (b *pluginBlock) State() engine.RunnableState {
	s, err := b.service.State(b.handle)
	if err != nil {
		b.log.Warn("plugin block State call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
		return b.cachedState()
	}
	return engine.RunnableState(s)
}

func (b *pluginBlock) cachedState() engine.RunnableState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastState
}

func (b *pluginBlock) HasError() bool {
	v, err := b.service.HasError(b.handle)
	if err != nil {
		b.log.Warn("plugin block HasError call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
		return true
	}
	return v
}

func (b *pluginBlock) InputJunction() *engine.Junction  { return b.in }
func (b *pluginBlock) OutputJunction() *engine.Junction { return b.out }

func (b *pluginBlock) SetInputText(text string) {
	if err := b.service.SetInputText(b.handle, text); err != nil {
		b.log.Warn("plugin block SetInputText call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
	}
}

func (b *pluginBlock) InputText() string {
	v, err := b.service.InputText(b.handle)
	if err != nil {
		b.log.Warn("plugin block InputText call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
	}
	return v
}

func (b *pluginBlock) SetResultText(text string) {
	if err := b.service.SetResultText(b.handle, text); err != nil {
		b.log.Warn("plugin block SetResultText call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
	}
}

func (b *pluginBlock) ResultText() string {
	v, err := b.service.ResultText(b.handle)
	if err != nil {
		b.log.Warn("plugin block ResultText call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
	}
	return v
}

func (b *pluginBlock) IsModified() bool {
	v, err := b.service.IsModified(b.handle)
	if err != nil {
		b.log.Warn("plugin block IsModified call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
	}
	return v
}

func (b *pluginBlock) ResetModified() {
	if err := b.service.ResetModified(b.handle); err != nil {
		b.log.Warn("plugin block ResetModified call failed", logger.Fields{"handle": b.handle, "error": err.Error()})
	}
}

func (b *pluginBlock) AddStateChangeListener(l engine.BlockStateChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// runRemote invokes fn against the plugin process, then re-reads state
// and notifies any local listeners if it changed, the RPC analogue of
// BlockBase.transition since the real transition happens out of
// process.
func (b *pluginBlock) runRemote(op string, fn func() error) error {
	before := b.cachedState()

	err := fn()

	after := b.State()
	b.mu.Lock()
	b.lastState = after
	listeners := make([]engine.BlockStateChangeListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	if err != nil {
		return ffeerr.New(ffeerr.Instantiation, "pluginBlock."+op, err)
	}
	if before != after {
		for _, l := range listeners {
			notifyPluginListener(l, b, before, after)
		}
	}
	return nil
}

func notifyPluginListener(l engine.BlockStateChangeListener, b engine.Block, from, to engine.RunnableState) {
	defer func() { _ = recover() }()
	l.OnBlockStateChange(b, from, to)
}

func (b *pluginBlock) Run() error   { return b.runRemote("Run", func() error { return b.service.Run(b.handle) }) }
func (b *pluginBlock) Stop()        { _ = b.runRemote("Stop", func() error { return b.service.Stop(b.handle) }) }
func (b *pluginBlock) Abort()       { _ = b.runRemote("Abort", func() error { return b.service.Abort(b.handle) }) }
func (b *pluginBlock) Reset()       { _ = b.runRemote("Reset", func() error { return b.service.Reset(b.handle) }) }
func (b *pluginBlock) SetReady() error {
	return b.runRemote("SetReady", func() error { return b.service.SetReady(b.handle) })
}

var _ engine.Block = (*pluginBlock)(nil)
