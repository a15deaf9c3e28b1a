package registry

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanTopLevel_SortsSubdirectoriesAndArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins/zeta/flowforge-plugin-zeta", []byte("bin"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/alpha/flowforge-plugin-alpha-b", []byte("bin"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/alpha/flowforge-plugin-alpha-a", []byte("bin"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/plugins/alpha/readme.txt", []byte("doc"), 0o644))

	dirs, err := scanTopLevel(fs, "/plugins", defaultIsArchive)
	require.NoError(t, err)
	require.Len(t, dirs, 2)

	assert.Equal(t, "alpha", dirs[0].name)
	assert.Equal(t, []string{
		"/plugins/alpha/flowforge-plugin-alpha-a",
		"/plugins/alpha/flowforge-plugin-alpha-b",
	}, dirs[0].archives)
	assert.ElementsMatch(t, []string{
		"flowforge-plugin-alpha-a", "flowforge-plugin-alpha-b", "readme.txt",
	}, dirs[0].allNames)

	assert.Equal(t, "zeta", dirs[1].name)
}

func TestScanTopLevel_FailsWhenTopLevelPathMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := scanTopLevel(fs, "/nonexistent", defaultIsArchive)
	assert.Error(t, err)
}

func TestScanTopLevel_FailsWhenSubdirectoryHasNoArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins/empty/readme.txt", []byte("doc"), 0o644))

	_, err := scanTopLevel(fs, "/plugins", defaultIsArchive)
	assert.Error(t, err)
}

func TestScanTopLevel_IgnoresRegularFilesAtTopLevel(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins/notes.txt", []byte("doc"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/plugins/echo/flowforge-plugin-echo", []byte("bin"), 0o755))

	dirs, err := scanTopLevel(fs, "/plugins", defaultIsArchive)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "echo", dirs[0].name)
}

func TestPruneDuplicates_DetectsWithoutRemovingByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins/echo/shared.so", []byte("dep"), 0o644))

	pd := pluginDir{name: "echo", path: "/plugins/echo", allNames: []string{"shared.so"}}
	hostArchives := map[string]bool{"shared.so": true}

	duplicates, err := pruneDuplicates(fs, pd, hostArchives, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared.so"}, duplicates)

	exists, err := afero.Exists(fs, "/plugins/echo/shared.so")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPruneDuplicates_RemovesWhenRequested(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins/echo/shared.so", []byte("dep"), 0o644))

	pd := pluginDir{name: "echo", path: "/plugins/echo", allNames: []string{"shared.so"}}
	hostArchives := map[string]bool{"shared.so": true}

	duplicates, err := pruneDuplicates(fs, pd, hostArchives, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared.so"}, duplicates)

	exists, err := afero.Exists(fs, "/plugins/echo/shared.so")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPruneDuplicates_NoDuplicatesIsANoOp(t *testing.T) {
	fs := afero.NewMemMapFs()
	pd := pluginDir{name: "echo", path: "/plugins/echo", allNames: []string{"flowforge-plugin-echo"}}

	duplicates, err := pruneDuplicates(fs, pd, map[string]bool{}, true)
	require.NoError(t, err)
	assert.Empty(t, duplicates)
}
