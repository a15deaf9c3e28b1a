package observer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"flowforge-engine/internal/engine"
	"flowforge-engine/pkg/logger"
)

// SnapshotListener persists one JSON document per instance, overwritten
// on every change event. It is a demonstration observer only: it never
// clears the modified flags it reads, leaving that to whichever
// consumer owns that responsibility.
type SnapshotListener struct {
	fs  afero.Fs
	dir string
	log logger.Logger

	mu sync.Mutex
}

func NewSnapshotListener(fs afero.Fs, dir string, log logger.Logger) *SnapshotListener {
	if log == nil {
		log = logger.Nop{}
	}
	return &SnapshotListener{fs: fs, dir: dir, log: log}
}

type blockSnapshot struct {
	InternalBlockID string `json:"internalBlockId"`
	BlockTypeID     string `json:"blockTypeId"`
	State           string `json:"state"`
	ResultText      string `json:"resultText"`
}

type instanceSnapshot struct {
	InstanceID int             `json:"instanceId"`
	State      string          `json:"state"`
	HasError   bool            `json:"hasError"`
	Blocks     []blockSnapshot `json:"blocks"`
}

// OnEvent implements engine.Listener.
func (s *SnapshotListener) OnEvent(event engine.ChangeEvent) {
	inst := event.Instance
	snap := instanceSnapshot{
		InstanceID: inst.InstanceID(),
		State:      inst.State().String(),
		HasError:   inst.HasError(),
	}
	for _, b := range inst.Blocks() {
		snap.Blocks = append(snap.Blocks, blockSnapshot{
			InternalBlockID: b.InternalBlockID(),
			BlockTypeID:     b.BlockTypeID(),
			State:           b.State().String(),
			ResultText:      b.ResultText(),
		})
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.log.Warn("snapshot marshal failed", logger.Fields{"instance_id": inst.InstanceID(), "error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		s.log.Warn("snapshot mkdir failed", logger.Fields{"error": err.Error()})
		return
	}
	path := filepath.Join(s.dir, fmt.Sprintf("instance-%d.json", inst.InstanceID()))
	if err := afero.WriteFile(s.fs, path, payload, 0o644); err != nil {
		s.log.Warn("snapshot write failed", logger.Fields{"instance_id": inst.InstanceID(), "error": err.Error()})
	}
}
