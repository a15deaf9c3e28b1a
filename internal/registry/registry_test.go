package registry

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/ffeerr"
)

// fakeBuilder implements both BuilderService and BlockService on a
// single type, the same shape builderRPCClient presents over the wire,
// so Registry.Load never needs to spawn a real plugin subprocess.
type fakeBuilder struct {
	version      string
	blockTypeIDs []string

	states map[string]engine.RunnableState
	texts  map[string]string

	nextHandle int
}

func newFakeBuilder(version string, blockTypeIDs ...string) *fakeBuilder {
	return &fakeBuilder{
		version:      version,
		blockTypeIDs: blockTypeIDs,
		states:       map[string]engine.RunnableState{},
		texts:        map[string]string{},
	}
}

func (b *fakeBuilder) ExpectedEngineVersion() (string, error) { return b.version, nil }
func (b *fakeBuilder) SupportedBlockTypeIDs() ([]string, error) {
	return b.blockTypeIDs, nil
}
func (b *fakeBuilder) BuildBlock(blockTypeID string, _ []string) (string, error) {
	b.nextHandle++
	handle := blockTypeID + "-handle"
	b.states[handle] = engine.Ready
	return handle, nil
}

func (b *fakeBuilder) State(handle string) (int, error) { return int(b.states[handle]), nil }
func (b *fakeBuilder) HasError(string) (bool, error)    { return false, nil }
func (b *fakeBuilder) Run(handle string) error {
	b.states[handle] = engine.Done
	return nil
}
func (b *fakeBuilder) Stop(handle string) error    { b.states[handle] = engine.Stopped; return nil }
func (b *fakeBuilder) Abort(handle string) error   { b.states[handle] = engine.Aborted; return nil }
func (b *fakeBuilder) Reset(handle string) error   { b.states[handle] = engine.Ready; return nil }
func (b *fakeBuilder) SetReady(handle string) error { b.states[handle] = engine.Ready; return nil }
func (b *fakeBuilder) SetInputText(handle, text string) error {
	b.texts[handle] = text
	return nil
}
func (b *fakeBuilder) InputText(handle string) (string, error)  { return b.texts[handle], nil }
func (b *fakeBuilder) SetResultText(handle, text string) error { b.texts[handle] = text; return nil }
func (b *fakeBuilder) ResultText(handle string) (string, error) { return b.texts[handle], nil }
func (b *fakeBuilder) IsModified(string) (bool, error)          { return true, nil }
func (b *fakeBuilder) ResetModified(string) error               { return nil }

var (
	_ BuilderService = (*fakeBuilder)(nil)
	_ BlockService   = (*fakeBuilder)(nil)
)

type fakeLauncher struct {
	buildersByPath map[string]*fakeBuilder
	launchErr      error
}

func (l *fakeLauncher) Launch(archivePath string) (*launchedPlugin, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	b, ok := l.buildersByPath[archivePath]
	if !ok {
		return nil, errors.New("fakeLauncher: no builder registered for " + archivePath)
	}
	return &launchedPlugin{builder: b}, nil
}

func setupFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/plugins/echo", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/echo/flowforge-plugin-echo", []byte("binary"), 0o755))
	return fs
}

func TestLoad_RegistersBlockTypesFromPlugin(t *testing.T) {
	fs := setupFS(t)
	builder := newFakeBuilder("1.0", "echo")

	reg := New(Config{
		AcceptableEngineVersions: []string{"1.0"},
		Launcher: &fakeLauncher{buildersByPath: map[string]*fakeBuilder{
			"/plugins/echo/flowforge-plugin-echo": builder,
		}},
	})

	require.NoError(t, reg.Load(fs, "/plugins"))

	block, err := reg.CreateBlock("b1", "echo")
	require.NoError(t, err)
	assert.Equal(t, "b1", block.InternalBlockID())
	assert.Equal(t, "echo", block.BlockTypeID())
	assert.Equal(t, engine.Ready, block.State())
}

func TestLoad_FailsOnUnacceptableEngineVersion(t *testing.T) {
	fs := setupFS(t)
	builder := newFakeBuilder("9.9", "echo")

	reg := New(Config{
		AcceptableEngineVersions: []string{"1.0"},
		Launcher: &fakeLauncher{buildersByPath: map[string]*fakeBuilder{
			"/plugins/echo/flowforge-plugin-echo": builder,
		}},
	})

	err := reg.Load(fs, "/plugins")
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.ConfigurationMismatch)))
}

func TestLoad_FailsWhenTopLevelPathMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	reg := New(Config{Launcher: &fakeLauncher{}})
	err := reg.Load(fs, "/nowhere")
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.ConfigurationMismatch)))
}

func TestLoad_FailsWhenSubdirectoryHasNoArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/plugins/empty", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/empty/readme.txt", []byte("nope"), 0o644))

	reg := New(Config{Launcher: &fakeLauncher{}})
	err := reg.Load(fs, "/plugins")
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.ConfigurationMismatch)))
}

func TestLoad_PrunesDuplicateHostArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/plugins/echo", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/echo/flowforge-plugin-echo", []byte("binary"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/echo/shared.so", []byte("dep"), 0o644))

	builder := newFakeBuilder("1.0", "echo")
	reg := New(Config{
		AcceptableEngineVersions:    []string{"1.0"},
		HostArchives:                []string{"shared.so"},
		RemoveDuplicateDependencies: true,
		Launcher: &fakeLauncher{buildersByPath: map[string]*fakeBuilder{
			"/plugins/echo/flowforge-plugin-echo": builder,
		}},
	})

	require.NoError(t, reg.Load(fs, "/plugins"))

	exists, err := afero.Exists(fs, "/plugins/echo/shared.so")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateBlock_UnknownBlockTypeIsNotFound(t *testing.T) {
	reg := New(Config{Launcher: &fakeLauncher{}})
	_, err := reg.CreateBlock("b1", "does-not-exist")
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.NotFound)))
}

func TestCreateBlock_BlankBlockTypeIsNullArgument(t *testing.T) {
	reg := New(Config{Launcher: &fakeLauncher{}})
	_, err := reg.CreateBlock("b1", "")
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.NullArgument)))
}

func TestCreateBlock_GeneratesIDWhenBlank(t *testing.T) {
	fs := setupFS(t)
	builder := newFakeBuilder("1.0", "echo")
	reg := New(Config{
		AcceptableEngineVersions: []string{"1.0"},
		Launcher: &fakeLauncher{buildersByPath: map[string]*fakeBuilder{
			"/plugins/echo/flowforge-plugin-echo": builder,
		}},
	})
	require.NoError(t, reg.Load(fs, "/plugins"))

	block, err := reg.CreateBlock("", "echo")
	require.NoError(t, err)
	assert.NotEmpty(t, block.InternalBlockID())
}

func TestLoad_AtomicSwapReplacesServices(t *testing.T) {
	fs := setupFS(t)
	builder := newFakeBuilder("1.0", "echo")
	launcher := &fakeLauncher{buildersByPath: map[string]*fakeBuilder{
		"/plugins/echo/flowforge-plugin-echo": builder,
	}}

	reg := New(Config{AcceptableEngineVersions: []string{"1.0"}, Launcher: launcher})
	require.NoError(t, reg.Load(fs, "/plugins"))

	_, err := reg.CreateBlock("b1", "echo")
	require.NoError(t, err)

	reg.Close()
	_, err = reg.CreateBlock("b2", "echo")
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.NotFound)))
}

func TestPluginBlock_RunForwardsOverHandle(t *testing.T) {
	fs := setupFS(t)
	builder := newFakeBuilder("1.0", "echo")
	reg := New(Config{
		AcceptableEngineVersions: []string{"1.0"},
		Launcher: &fakeLauncher{buildersByPath: map[string]*fakeBuilder{
			"/plugins/echo/flowforge-plugin-echo": builder,
		}},
	})
	require.NoError(t, reg.Load(fs, "/plugins"))

	block, err := reg.CreateBlock("b1", "echo")
	require.NoError(t, err)

	block.SetInputText("hello")
	require.NoError(t, block.Run())
	assert.Equal(t, engine.Done, block.State())
}
