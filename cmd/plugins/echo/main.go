// Command echo is a demonstration block-builder plugin: it supports a
// single blockTypeId, "echo", which copies its input text to its
// result text on the first run. It exists to exercise the registry's
// process-isolated loading end to end, not as a feature in its own
// right.
package main

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-plugin"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/registry"
)

const engineVersion = "1.0"

type echoState struct {
	mu         sync.Mutex
	state      engine.RunnableState
	hasError   bool
	inputText  string
	resultText string
	modified   bool
}

func (s *echoState) snapshotModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// echoBuilder implements both registry.BuilderService and
// registry.BlockService: it builds echo blocks and keeps their state
// resident in this process, addressed by handle.
type echoBuilder struct {
	mu         sync.Mutex
	nextHandle int64
	blocks     map[string]*echoState
}

func newEchoBuilder() *echoBuilder {
	return &echoBuilder{blocks: make(map[string]*echoState)}
}

func (b *echoBuilder) ExpectedEngineVersion() (string, error) { return engineVersion, nil }

func (b *echoBuilder) SupportedBlockTypeIDs() ([]string, error) {
	return []string{"echo"}, nil
}

func (b *echoBuilder) BuildBlock(blockTypeID string, _ []string) (string, error) {
	if blockTypeID != "echo" {
		return "", fmt.Errorf("echo plugin: unsupported block type %q", blockTypeID)
	}
	handle := strconv.FormatInt(atomic.AddInt64(&b.nextHandle, 1), 10)

	b.mu.Lock()
	b.blocks[handle] = &echoState{state: engine.Ready, modified: true}
	b.mu.Unlock()

	return handle, nil
}

func (b *echoBuilder) get(handle string) (*echoState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.blocks[handle]
	if !ok {
		return nil, fmt.Errorf("echo plugin: unknown block handle %q", handle)
	}
	return s, nil
}

func (b *echoBuilder) State(handle string) (int, error) {
	s, err := b.get(handle)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.state), nil
}

func (b *echoBuilder) HasError(handle string) (bool, error) {
	s, err := b.get(handle)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasError, nil
}

// Run completes the block immediately: any block that reaches this
// plugin has no lines feeding work into it over multiple ticks, so a
// single run is enough to produce its result.
func (b *echoBuilder) Run(handle string) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasError {
		return fmt.Errorf("echo plugin: block %q has a pending error", handle)
	}
	s.state = engine.Running
	s.resultText = s.inputText
	s.state = engine.Done
	s.modified = true
	return nil
}

func (b *echoBuilder) Stop(handle string) error {
	return b.setState(handle, engine.Stopped)
}

func (b *echoBuilder) Abort(handle string) error {
	return b.setState(handle, engine.Aborted)
}

func (b *echoBuilder) Reset(handle string) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasError = false
	s.resultText = ""
	s.state = engine.Ready
	s.modified = true
	return nil
}

func (b *echoBuilder) SetReady(handle string) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasError {
		return fmt.Errorf("echo plugin: block %q has a pending error", handle)
	}
	switch s.state {
	case engine.Done, engine.Stopped, engine.Aborted:
		s.state = engine.Ready
		s.modified = true
	}
	return nil
}

func (b *echoBuilder) setState(handle string, state engine.RunnableState) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.modified = true
	return nil
}

func (b *echoBuilder) SetInputText(handle, text string) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputText = text
	s.modified = true
	return nil
}

func (b *echoBuilder) InputText(handle string) (string, error) {
	s, err := b.get(handle)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputText, nil
}

func (b *echoBuilder) SetResultText(handle, text string) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == engine.Done {
		return nil
	}
	s.resultText = text
	s.modified = true
	return nil
}

func (b *echoBuilder) ResultText(handle string) (string, error) {
	s, err := b.get(handle)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultText, nil
}

func (b *echoBuilder) IsModified(handle string) (bool, error) {
	s, err := b.get(handle)
	if err != nil {
		return false, err
	}
	return s.snapshotModified(), nil
}

func (b *echoBuilder) ResetModified(handle string) error {
	s, err := b.get(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = false
	return nil
}

func main() {
	impl := newEchoBuilder()
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: registry.Handshake,
		Plugins: map[string]plugin.Plugin{
			"builder": &registry.BuilderPlugin{Impl: impl, Blocks: impl},
		},
	})
}
