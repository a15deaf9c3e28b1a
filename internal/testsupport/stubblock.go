// Package testsupport provides deterministic Block test doubles
// shared by internal/engine, internal/scheduler, and internal/observer
// tests. Concrete block implementations are user code; nothing here is
// wired into the registry or exposed as a usable block type outside of
// tests.
package testsupport

import "flowforge-engine/internal/engine"

// StubBlock completes after a configurable number of Run() calls,
// copying InputText to ResultText and switching every outgoing line ON
// on its final tick. Every Run() switches its incoming lines OFF, so the
// activation that queued it is consumed once. It is used to exercise the planner/dispatcher
// (single-tick and multi-tick chains, diamonds, cycles) without
// depending on any real block implementation.
type StubBlock struct {
	*engine.BlockBase

	// TicksToDone is how many Run() calls this block needs before
	// transitioning to DONE. Zero or one means it completes on its
	// first Run().
	TicksToDone int

	ticks int
	// OnRun, if set, is called on every Run() invocation before the
	// built-in bookkeeping; returning an error fails the tick, used to
	// exercise how a block failure propagates to its owning instance.
	OnRun func(b *StubBlock) error
}

// NewStubBlock constructs a ready StubBlock identified by
// internalBlockID, completing after ticksToDone calls to Run().
func NewStubBlock(internalBlockID string, ticksToDone int) *StubBlock {
	s := &StubBlock{
		BlockBase:   engine.NewBlockBase(internalBlockID, "stub"),
		TicksToDone: ticksToDone,
	}
	s.BindSelf(s)
	return s
}

// Run advances the stub one tick, completing (and copying InputText to
// ResultText) once TicksToDone calls have been made.
func (s *StubBlock) Run() error {
	if s.State() == engine.Ready {
		s.MarkRunning()
	}
	for _, l := range s.InputJunction().Lines() {
		l.SetState(engine.LineOff)
	}

	s.ticks++

	if s.OnRun != nil {
		if err := s.OnRun(s); err != nil {
			return err
		}
	}

	threshold := s.TicksToDone
	if threshold < 1 {
		threshold = 1
	}
	if s.ticks >= threshold {
		s.SetResultText(s.InputText())
		for _, l := range s.OutputJunction().Lines() {
			l.SetState(engine.LineOn)
		}
		s.MarkDone()
	}
	return nil
}
