package scheduler

import (
	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/ffeerr"
)

// commandQueue is a bounded, lock-free multiple-producer / single-
// consumer FIFO backed by a buffered channel. The tick worker is the
// sole consumer.
type commandQueue struct {
	ch chan engine.Command
}

func newCommandQueue(capacity int) *commandQueue {
	return &commandQueue{ch: make(chan engine.Command, capacity)}
}

// put enqueues cmd, failing with CommandFailed if the queue is full
// rather than blocking the caller.
func (q *commandQueue) put(cmd engine.Command) error {
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ffeerr.New(ffeerr.CommandFailed, "ProcessingUnit.PutCommand", nil)
	}
}

// drainInto pops every currently queued command and calls apply on
// each, in FIFO order. Used both to apply commands at the start of a
// tick and to discard them when there are no instances.
func (q *commandQueue) drainInto(apply func(engine.Command)) {
	for {
		select {
		case cmd := <-q.ch:
			if apply != nil {
				apply(cmd)
			}
		default:
			return
		}
	}
}
