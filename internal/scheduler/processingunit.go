// Package scheduler drives every registered Instance on a shared
// cadence and routes best-effort commands to them.
package scheduler

import (
	"context"
	"sync"
	"time"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/ffeerr"
	"flowforge-engine/pkg/logger"
)

// InstanceListItem is the snapshot view returned by
// GetInstanceListItems.
type InstanceListItem struct {
	InstanceID int
	OwnerID    int
	Name       string
	State      engine.RunnableState
}

// ProcessingUnit is the scheduler: a mapping instanceId -> Instance, a
// FIFO command queue, and a single cooperative worker ticking at a
// fixed cadence.
type ProcessingUnit struct {
	instancesMu sync.RWMutex
	instances   map[int]*engine.Instance

	queue *commandQueue

	processingDelay time.Duration
	logger          logger.Logger

	lifecycleMu sync.Mutex
	running     bool
	cancel      context.CancelFunc
	stopped     chan struct{}
}

// New constructs a ProcessingUnit. processingDelay defaults to one
// second when zero.
func New(processingDelay time.Duration, commandQueueLen int, log logger.Logger) *ProcessingUnit {
	if processingDelay <= 0 {
		processingDelay = 1 * time.Second
	}
	if commandQueueLen <= 0 {
		commandQueueLen = 256
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &ProcessingUnit{
		instances:       make(map[int]*engine.Instance),
		queue:           newCommandQueue(commandQueueLen),
		processingDelay: processingDelay,
		logger:          log,
	}
}

// AddInstance registers inst, failing with ObjectAlreadyExists if its
// id is already present.
func (p *ProcessingUnit) AddInstance(inst *engine.Instance) error {
	p.instancesMu.Lock()
	defer p.instancesMu.Unlock()

	if _, exists := p.instances[inst.InstanceID()]; exists {
		return ffeerr.New(ffeerr.ObjectAlreadyExists, "ProcessingUnit.AddInstance", nil)
	}
	p.instances[inst.InstanceID()] = inst
	return nil
}

// GetInstanceListItems returns a snapshot of every instance owned by
// userID. Order is unspecified.
func (p *ProcessingUnit) GetInstanceListItems(userID int) []InstanceListItem {
	p.instancesMu.RLock()
	defer p.instancesMu.RUnlock()

	var out []InstanceListItem
	for _, inst := range p.instances {
		if inst.InstanceUserID() == userID {
			out = append(out, InstanceListItem{
				InstanceID: inst.InstanceID(),
				OwnerID:    inst.InstanceUserID(),
				Name:       inst.InstanceName(),
				State:      inst.State(),
			})
		}
	}
	return out
}

// PutCommand validates and enqueues cmd. instanceId must be positive;
// a full queue surfaces CommandFailed.
func (p *ProcessingUnit) PutCommand(cmd engine.Command) error {
	if cmd.InstanceID <= 0 {
		return ffeerr.New(ffeerr.NullArgument, "ProcessingUnit.PutCommand", nil)
	}
	return p.queue.put(cmd)
}

// StartProcessing spawns the tick worker if it isn't already running;
// idempotent.
func (p *ProcessingUnit) StartProcessing() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopped = make(chan struct{})
	p.running = true

	go p.loop(ctx, p.stopped)
}

func (p *ProcessingUnit) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.processTick()

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.processingDelay):
		}
	}
}

// StopProcessing cancels the pending schedule and waits up to timeout
// for the worker to finish its in-flight tick. Go goroutines cannot be
// preempted, so "forces termination" is realized by simply giving up
// the wait after timeout rather than blocking the caller forever; the
// worker still exits on its own once the in-flight tick returns.
func (p *ProcessingUnit) StopProcessing(timeout time.Duration) {
	p.lifecycleMu.Lock()
	if !p.running {
		p.lifecycleMu.Unlock()
		return
	}
	cancel := p.cancel
	stopped := p.stopped
	p.running = false
	p.lifecycleMu.Unlock()

	cancel()
	select {
	case <-stopped:
	case <-time.After(timeout):
		p.logger.Warn("stopProcessing timed out waiting for worker", nil)
	}
}

// processTick runs one scheduling pass: drain commands (or discard
// them if there are no instances), then run() every ready-to-run
// instance.
func (p *ProcessingUnit) processTick() {
	p.instancesMu.RLock()
	empty := len(p.instances) == 0
	p.instancesMu.RUnlock()

	if empty {
		p.queue.drainInto(nil)
		return
	}

	p.queue.drainInto(p.applyCommand)

	p.instancesMu.RLock()
	snapshot := make([]*engine.Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		snapshot = append(snapshot, inst)
	}
	p.instancesMu.RUnlock()

	for _, inst := range snapshot {
		p.runInstance(inst)
	}
}

func (p *ProcessingUnit) applyCommand(cmd engine.Command) {
	p.instancesMu.Lock()
	inst, ok := p.instances[cmd.InstanceID]
	if ok && cmd.Kind == engine.CmdRemove {
		delete(p.instances, cmd.InstanceID)
	}
	p.instancesMu.Unlock()

	if !ok {
		return
	}

	switch cmd.Kind {
	case engine.CmdSetReady:
		if err := inst.SetReady(); err != nil {
			p.logger.Warn("setReady command failed", logger.Fields{
				"instance_id": cmd.InstanceID, "error": err.Error(),
			})
		}
	case engine.CmdStop:
		inst.Stop()
	case engine.CmdAbort:
		inst.Abort()
	case engine.CmdReset:
		inst.Reset()
	case engine.CmdRemove:
		// already removed from the map above
	case engine.CmdPause, engine.CmdResume:
		// reserved; deliberate no-op until pause/resume semantics land
	}
}

func (p *ProcessingUnit) runInstance(inst *engine.Instance) {
	state := inst.State()
	if state == engine.NotConfigured {
		p.logger.Error("instance not configured", logger.Fields{
			"instance_id": inst.InstanceID(),
			"error":       ffeerr.New(ffeerr.ConfigurationMismatch, "ProcessingUnit.runInstance", nil).Error(),
		})
		return
	}
	if !state.ReadyToRun() {
		return
	}
	if err := inst.Run(); err != nil {
		p.logger.Error("instance run failed", logger.Fields{
			"instance_id": inst.InstanceID(),
			"error":       err.Error(),
		})
	}
}
