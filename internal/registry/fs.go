package registry

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"flowforge-engine/internal/ffeerr"
)

// pluginDir is one subdirectory of the top-level modules directory:
// its name, the archive (executable plugin binary) paths it contains,
// and the full set of regular filenames seen in it.
type pluginDir struct {
	name     string
	path     string
	archives []string
	allNames []string
}

// scanTopLevel walks topLevelPath one level deep and returns its
// immediate subdirectories as pluginDirs, sorted by name for
// deterministic load order. isArchive decides which regular files
// inside a subdirectory count as launchable plugin binaries; anything
// else is a dependency archive.
func scanTopLevel(fs afero.Fs, topLevelPath string, isArchive func(name string) bool) ([]pluginDir, error) {
	info, err := fs.Stat(topLevelPath)
	if err != nil || !info.IsDir() {
		return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
	}

	entries, err := afero.ReadDir(fs, topLevelPath)
	if err != nil {
		return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
	}

	var dirs []pluginDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(topLevelPath, e.Name())
		subEntries, err := afero.ReadDir(fs, sub)
		if err != nil {
			return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
		}

		pd := pluginDir{name: e.Name(), path: sub}
		for _, se := range subEntries {
			if se.IsDir() {
				continue
			}
			pd.allNames = append(pd.allNames, se.Name())
			if isArchive(se.Name()) {
				pd.archives = append(pd.archives, filepath.Join(sub, se.Name()))
			}
		}
		if len(pd.archives) == 0 {
			return nil, ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", nil)
		}
		sort.Strings(pd.archives)
		dirs = append(dirs, pd)
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].name < dirs[j].name })
	return dirs, nil
}

// pruneDuplicates removes from pd any file also present in
// hostArchives, deleting it from fs when removeDuplicates is set. A
// deletion failure is ConfigurationMismatch; a detected-but-not-
// removed duplicate is only logged by the caller.
func pruneDuplicates(fs afero.Fs, pd pluginDir, hostArchives map[string]bool, removeDuplicates bool) ([]string, error) {
	var duplicates []string
	for _, name := range pd.allNames {
		if hostArchives[name] {
			duplicates = append(duplicates, name)
		}
	}
	if len(duplicates) == 0 || !removeDuplicates {
		return duplicates, nil
	}
	for _, name := range duplicates {
		full := filepath.Join(pd.path, name)
		if err := fs.Remove(full); err != nil && !os.IsNotExist(err) {
			return duplicates, ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
		}
	}
	return duplicates, nil
}
