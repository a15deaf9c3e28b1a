package scheduler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/ffeerr"
	"flowforge-engine/internal/scheduler"
	"flowforge-engine/internal/testsupport"
)

func newInstance(t *testing.T, id int, block engine.Block) *engine.Instance {
	t.Helper()
	inst, err := engine.NewInstance(engine.InstanceConfig{
		InstanceID:     id,
		TemplateID:     1,
		InstanceUserID: 42,
		InstanceName:   "inst",
		Blocks:         []engine.Block{block},
	})
	require.NoError(t, err)
	return inst
}

func TestAddInstance_RejectsDuplicateID(t *testing.T) {
	unit := scheduler.New(time.Hour, 8, nil)
	inst := newInstance(t, 1, testsupport.NewStubBlock("a", 1))

	require.NoError(t, unit.AddInstance(inst))
	err := unit.AddInstance(newInstance(t, 1, testsupport.NewStubBlock("b", 1)))
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.ObjectAlreadyExists)))
}

func TestGetInstanceListItems_FiltersByOwner(t *testing.T) {
	unit := scheduler.New(time.Hour, 8, nil)
	require.NoError(t, unit.AddInstance(newInstance(t, 1, testsupport.NewStubBlock("a", 1))))

	items := unit.GetInstanceListItems(42)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].InstanceID)

	assert.Empty(t, unit.GetInstanceListItems(999))
}

func TestPutCommand_RejectsNonPositiveInstanceID(t *testing.T) {
	unit := scheduler.New(time.Hour, 8, nil)
	err := unit.PutCommand(engine.Command{Kind: engine.CmdStop, InstanceID: 0})
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.NullArgument)))
}

func TestPutCommand_FailsWhenQueueFull(t *testing.T) {
	unit := scheduler.New(time.Hour, 1, nil)
	require.NoError(t, unit.PutCommand(engine.Command{Kind: engine.CmdStop, InstanceID: 1}))
	err := unit.PutCommand(engine.Command{Kind: engine.CmdStop, InstanceID: 1})
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.CommandFailed)))
}

// TestTickDrivesInstanceToCompletion starts the worker on a fast
// cadence and waits for a single-block instance to reach DONE.
func TestTickDrivesInstanceToCompletion(t *testing.T) {
	unit := scheduler.New(5*time.Millisecond, 8, nil)
	block := testsupport.NewStubBlock("a", 1)
	inst := newInstance(t, 1, block)
	require.NoError(t, unit.AddInstance(inst))

	unit.StartProcessing()
	defer unit.StopProcessing(time.Second)

	require.Eventually(t, func() bool {
		return inst.State() == engine.Done
	}, time.Second, 5*time.Millisecond)
}

// TestCommandAppliedAcrossTicks ensures a STOP command submitted while
// an instance is running takes effect on a subsequent tick.
func TestCommandAppliedAcrossTicks(t *testing.T) {
	unit := scheduler.New(5*time.Millisecond, 8, nil)
	block := testsupport.NewStubBlock("a", 100) // needs 100 ticks, still running when STOP arrives
	inst := newInstance(t, 1, block)
	require.NoError(t, unit.AddInstance(inst))

	unit.StartProcessing()
	defer unit.StopProcessing(time.Second)

	require.Eventually(t, func() bool {
		return inst.State() == engine.Running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, unit.PutCommand(engine.Command{Kind: engine.CmdStop, InstanceID: 1}))

	require.Eventually(t, func() bool {
		return inst.State() == engine.Stopped
	}, time.Second, 5*time.Millisecond)
}

func TestStartProcessing_IsIdempotent(t *testing.T) {
	unit := scheduler.New(time.Hour, 8, nil)
	unit.StartProcessing()
	unit.StartProcessing()
	unit.StopProcessing(time.Second)
}
