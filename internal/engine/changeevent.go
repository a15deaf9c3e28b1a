package engine

import (
	"sync"

	"github.com/google/uuid"
)

// Modifiable is the read side of the "modified" flag both Block and
// Line expose.
type Modifiable interface {
	IsModified() bool
	ResetModified()
}

// ChangeEvent is the immutable message published to listeners at most
// once per tick: the instance and the objects it mutated.
// ModifiedObjects is read-only; listeners must not mutate it.
type ChangeEvent struct {
	Instance        *Instance
	ModifiedObjects []Modifiable
}

// Listener reacts to change events. Implementations must be
// re-entrant-safe; they may be invoked from the scheduler's tick
// goroutine.
type Listener interface {
	OnEvent(event ChangeEvent)
}

// ListenerHandle identifies a registered listener so it can be removed
// without the caller retaining listener identity itself.
type ListenerHandle uuid.UUID

type registeredListener struct {
	handle   ListenerHandle
	listener Listener
}

// listenerList is a copy-on-write slice of registered listeners. Add
// and Snapshot never block each other for long, and a snapshot taken
// before dispatch is immune to concurrent Add/Remove corrupting the
// in-flight iteration.
type listenerList struct {
	mu    sync.Mutex
	items []registeredListener
}

func (l *listenerList) add(listener Listener) ListenerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := ListenerHandle(uuid.New())
	next := make([]registeredListener, len(l.items), len(l.items)+1)
	copy(next, l.items)
	l.items = append(next, registeredListener{handle: h, listener: listener})
	return h
}

func (l *listenerList) remove(handle ListenerHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]registeredListener, 0, len(l.items))
	for _, r := range l.items {
		if r.handle != handle {
			next = append(next, r)
		}
	}
	l.items = next
}

func (l *listenerList) snapshot() []registeredListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]registeredListener, len(l.items))
	copy(out, l.items)
	return out
}
