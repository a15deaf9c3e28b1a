package engine

import (
	"strings"
	"sync"

	"flowforge-engine/internal/ffeerr"
	"flowforge-engine/pkg/logger"
)

// LineSpec names a line to be constructed between two blocks by their
// InternalBlockID, at Instance construction time.
type LineSpec struct {
	FromBlockID string
	ToBlockID   string
}

// InstanceConfig is the construction contract for NewInstance.
type InstanceConfig struct {
	InstanceID     int
	TemplateID     int
	InstanceUserID int
	InstanceName   string
	Parameters     *InstanceParameters
	Blocks         []Block
	Lines          []LineSpec
	Logger         logger.Logger
}

// Instance is a live procedure: an owned graph of blocks and lines
// with its own RunnableState, plan, and change-event listeners. Every
// externally visible operation holds instance-wide mutual exclusion.
type Instance struct {
	mu sync.Mutex

	instanceID     int
	templateID     int
	instanceUserID int
	instanceName   string

	parameters *InstanceParameters
	blocks     []Block
	lines      []*Line

	state      RunnableState
	modified   bool
	hasError   bool
	errMessage string

	plan []Block

	listeners listenerList
	logger    logger.Logger
}

// NewInstance validates cfg and constructs an Instance in the READY
// state with modified=true.
func NewInstance(cfg InstanceConfig) (*Instance, error) {
	if cfg.InstanceID <= 0 || cfg.TemplateID <= 0 || cfg.InstanceUserID <= 0 {
		return nil, ffeerr.New(ffeerr.NullArgument, "NewInstance", nil)
	}
	if strings.TrimSpace(cfg.InstanceName) == "" {
		return nil, ffeerr.New(ffeerr.NullArgument, "NewInstance", nil)
	}
	if len(cfg.Blocks) == 0 && len(cfg.Lines) > 0 {
		return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "NewInstance", nil)
	}

	byID := make(map[string]Block, len(cfg.Blocks))
	for _, b := range cfg.Blocks {
		byID[b.InternalBlockID()] = b
	}

	lines := make([]*Line, 0, len(cfg.Lines))
	for _, spec := range cfg.Lines {
		from, ok := byID[spec.FromBlockID]
		if !ok {
			return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "NewInstance", nil)
		}
		to, ok := byID[spec.ToBlockID]
		if !ok {
			return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "NewInstance", nil)
		}
		lines = append(lines, NewLine(from, to))
	}

	params := cfg.Parameters
	if params == nil {
		params, _ = NewInstanceParameters(nil)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop{}
	}

	return &Instance{
		instanceID:     cfg.InstanceID,
		templateID:     cfg.TemplateID,
		instanceUserID: cfg.InstanceUserID,
		instanceName:   cfg.InstanceName,
		parameters:     params,
		blocks:         append([]Block(nil), cfg.Blocks...),
		lines:          lines,
		state:          Ready,
		modified:       true,
		logger:         log,
	}, nil
}

func (i *Instance) InstanceID() int     { return i.instanceID }
func (i *Instance) TemplateID() int     { return i.templateID }
func (i *Instance) InstanceUserID() int { return i.instanceUserID }
func (i *Instance) InstanceName() string {
	return i.instanceName
}

func (i *Instance) State() RunnableState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) Modified() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.modified
}

func (i *Instance) HasError() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hasError
}

func (i *Instance) ErrorMessage() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.errMessage
}

// Blocks returns a snapshot slice of the instance's blocks.
func (i *Instance) Blocks() []Block {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Block, len(i.blocks))
	copy(out, i.blocks)
	return out
}

// Lines returns a snapshot slice of the instance's lines.
func (i *Instance) Lines() []*Line {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*Line, len(i.lines))
	copy(out, i.lines)
	return out
}

// Plan returns a snapshot of the blocks currently queued to run.
func (i *Instance) Plan() []Block {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Block, len(i.plan))
	copy(out, i.plan)
	return out
}

// AddListener registers l for future change events and returns a
// handle that can later be passed to RemoveListener.
func (i *Instance) AddListener(l Listener) ListenerHandle {
	return i.listeners.add(l)
}

// RemoveListener unregisters the listener identified by handle. It is
// safe to call during event dispatch.
func (i *Instance) RemoveListener(handle ListenerHandle) {
	i.listeners.remove(handle)
}

// ModifiedObjects returns every block and line currently flagged
// modified, blocks first, in iteration order. It does not clear any
// flags; callers that need a clean slate call ResetModified on each
// returned object themselves.
func (i *Instance) ModifiedObjects() []Modifiable {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.collectModifiedLocked()
}

func (i *Instance) collectModifiedLocked() []Modifiable {
	var out []Modifiable
	for _, b := range i.blocks {
		if b.IsModified() {
			out = append(out, b)
		}
	}
	for _, l := range i.lines {
		if l.IsModified() {
			out = append(out, l)
		}
	}
	return out
}

// Reset moves the instance any -> READY, clears the error flag, and
// resets every block and line.
func (i *Instance) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, b := range i.blocks {
		b.Reset()
	}
	for _, l := range i.lines {
		l.Reset()
	}
	i.plan = nil
	i.hasError = false
	i.errMessage = ""
	i.state = Ready
	i.modified = true
}

// Stop moves the instance any -> STOPPED, propagating stop to every
// block and switching every line OFF.
func (i *Instance) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, b := range i.blocks {
		b.Stop()
	}
	for _, l := range i.lines {
		l.SetState(LineOff)
	}
	i.plan = nil
	i.state = Stopped
	i.modified = true
}

// Abort moves the instance any -> ABORTED, propagating abort to every
// block and switching every line OFF.
func (i *Instance) Abort() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, b := range i.blocks {
		b.Abort()
	}
	for _, l := range i.lines {
		l.SetState(LineOff)
	}
	i.plan = nil
	i.state = Aborted
	i.modified = true
}

// SetReady moves the instance DONE|STOPPED|ABORTED -> READY without
// resetting blocks; fails with ConfigurationMismatch if the error flag
// is set; a no-op from any other state.
func (i *Instance) SetReady() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.hasError {
		return ffeerr.New(ffeerr.ConfigurationMismatch, "Instance.SetReady", nil)
	}
	switch i.state {
	case Done, Stopped, Aborted:
		i.state = Ready
		i.modified = true
	}
	return nil
}

// Run advances the instance's plan by one step. From
// READY it computes the initial plan and moves to RUNNING without
// executing any block. From RUNNING it dispatches every block
// currently in the plan, publishes a change event, and advances the
// plan. From NOT_CONFIGURED it fails with ConfigurationMismatch. From
// any other state it is a silent no-op (the scheduler is expected to
// only call Run on ready-to-run instances; this guard just keeps the
// method safe to call directly).
func (i *Instance) Run() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch i.state {
	case NotConfigured:
		i.hasError = true
		i.errMessage = "instance not configured"
		i.modified = true
		return ffeerr.New(ffeerr.ConfigurationMismatch, "Instance.Run", nil)
	case Ready:
		i.applyParametersLocked()
		i.plan = i.sourceBlocksLocked()
		i.state = Running
		i.modified = true
		return nil
	case Running:
		return i.dispatchLocked()
	default:
		return nil
	}
}

func (i *Instance) applyParametersLocked() {
	for _, b := range i.blocks {
		if p, ok := i.parameters.Lookup(b.InternalBlockID()); ok {
			b.SetInputText(p.Value)
		}
	}
}

func (i *Instance) sourceBlocksLocked() []Block {
	var plan []Block
	for _, b := range i.blocks {
		if !b.InputJunction().HasLines() {
			plan = append(plan, b)
		}
	}
	return plan
}

func (i *Instance) dispatchLocked() error {
	for _, b := range i.plan {
		if err := b.Run(); err != nil {
			i.hasError = true
			i.errMessage = err.Error()
			i.modified = true
			return err
		}
	}

	modified := i.collectModifiedLocked()
	i.publishLocked(modified)
	i.advancePlanLocked()

	if len(i.plan) == 0 {
		i.state = Done
		i.modified = true
	}
	return nil
}

func (i *Instance) publishLocked(modified []Modifiable) {
	event := ChangeEvent{Instance: i, ModifiedObjects: modified}
	for _, r := range i.listeners.snapshot() {
		i.safeNotify(r.listener, event)
	}
}

func (i *Instance) safeNotify(l Listener, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Warn("listener panicked handling change event", logger.Fields{
				"instance_id": i.instanceID,
				"panic":       r,
			})
		}
	}()
	l.OnEvent(event)
}

func (i *Instance) advancePlanLocked() {
	next := make([]Block, 0, len(i.plan))
	inPlan := make(map[string]bool, len(i.plan))

	for _, b := range i.plan {
		if b.State() != Done {
			next = append(next, b)
			inPlan[b.InternalBlockID()] = true
		}
	}

	for _, l := range i.lines {
		if l.State() != LineOn {
			continue
		}
		to := l.BlockTo()
		if !inPlan[to.InternalBlockID()] {
			next = append(next, to)
			inPlan[to.InternalBlockID()] = true
		}
	}

	i.plan = next
}
