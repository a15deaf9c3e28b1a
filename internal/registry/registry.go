// Package registry discovers block implementations packaged as
// external plugin archives and builds engine.Block instances from
// them on demand.
package registry

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/ffeerr"
	"flowforge-engine/pkg/logger"
)

// boundService is a builder service together with the BlockService
// half of the same RPC client, used to hand out pluginBlocks built by
// it.
type boundService struct {
	builder BuilderService
	blocks  BlockService
}

// registryState is the atomically swapped (services, loaders) pair: a
// reader takes one atomic load and sees either the whole old pair or
// the whole new one, never a mix.
type registryState struct {
	services map[string]*boundService
	loaders  []*launchedPlugin
}

var emptyState = &registryState{services: map[string]*boundService{}}

// Config configures a Registry at construction time.
type Config struct {
	// AcceptableEngineVersions is the set a plugin's
	// ExpectedEngineVersion() must belong to.
	AcceptableEngineVersions []string
	// HostArchives is the host application's own archive filenames,
	// used for the duplicate-dependency check during Load.
	HostArchives []string
	// RemoveDuplicateDependencies, when set, deletes duplicate archive
	// files from plugin subdirectories instead of only warning.
	RemoveDuplicateDependencies bool
	// IsArchive decides whether a filename names a launchable plugin
	// binary. Defaults to matching a "flowforge-plugin-" prefix.
	IsArchive func(name string) bool

	// HandshakeTimeout bounds how long launching a plugin process waits
	// for it to complete the go-plugin handshake. Ignored when Launcher
	// is set explicitly.
	HandshakeTimeout time.Duration

	Launcher PluginLauncher
	Logger   logger.Logger
}

// Registry is the host-side block builder registry. The zero value is
// not usable; construct with New.
type Registry struct {
	state atomic.Pointer[registryState]

	acceptableVersions map[string]bool
	hostArchives       map[string]bool
	removeDuplicates   bool
	isArchive          func(name string) bool

	launcher PluginLauncher
	log      logger.Logger

	// loadMu serializes concurrent Load calls; CreateBlock and Close
	// never block on it.
	loadMu sync.Mutex
}

func New(cfg Config) *Registry {
	versions := make(map[string]bool, len(cfg.AcceptableEngineVersions))
	for _, v := range cfg.AcceptableEngineVersions {
		versions[v] = true
	}
	hostArchives := make(map[string]bool, len(cfg.HostArchives))
	for _, v := range cfg.HostArchives {
		hostArchives[v] = true
	}

	isArchive := cfg.IsArchive
	if isArchive == nil {
		isArchive = defaultIsArchive
	}

	launcher := cfg.Launcher
	if launcher == nil {
		launcher = newProcessLauncher(cfg.HandshakeTimeout)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop{}
	}

	r := &Registry{
		acceptableVersions: versions,
		hostArchives:       hostArchives,
		removeDuplicates:   cfg.RemoveDuplicateDependencies,
		isArchive:          isArchive,
		launcher:           launcher,
		log:                log,
	}
	r.state.Store(emptyState)
	return r
}

func defaultIsArchive(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "flowforge-plugin-")
}

// Load scans topLevelPath via fs, launches every plugin archive it
// finds, and atomically replaces the registry's service set.
func (r *Registry) Load(fs afero.Fs, topLevelPath string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	dirs, err := scanTopLevel(fs, topLevelPath, r.isArchive)
	if err != nil {
		return err
	}

	next := &registryState{services: map[string]*boundService{}}

	for _, pd := range dirs {
		duplicates, err := pruneDuplicates(fs, pd, r.hostArchives, r.removeDuplicates)
		if err != nil {
			r.closeLoaders(next.loaders)
			return err
		}
		if len(duplicates) > 0 {
			r.log.Warn("plugin subdirectory shares archives with host application", logger.Fields{
				"dir": pd.name, "duplicates": duplicates,
			})
		}

		for _, archivePath := range pd.archives {
			launched, err := r.launcher.Launch(archivePath)
			if err != nil {
				r.closeLoaders(next.loaders)
				return ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
			}
			next.loaders = append(next.loaders, launched)

			version, err := launched.builder.ExpectedEngineVersion()
			if err != nil {
				r.closeLoaders(next.loaders)
				return ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
			}
			if !r.acceptableVersions[version] {
				r.closeLoaders(next.loaders)
				return ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", nil)
			}

			blockTypeIDs, err := launched.builder.SupportedBlockTypeIDs()
			if err != nil {
				r.closeLoaders(next.loaders)
				return ffeerr.New(ffeerr.ConfigurationMismatch, "registry.load", err)
			}

			blocks, _ := launched.builder.(BlockService)
			bound := &boundService{builder: launched.builder, blocks: blocks}
			for _, id := range blockTypeIDs {
				next.services[id] = bound
			}
		}
	}

	prev := r.state.Swap(next)
	r.closeLoaders(prev.loaders)
	return nil
}

func (r *Registry) closeLoaders(loaders []*launchedPlugin) {
	for _, l := range loaders {
		func(l *launchedPlugin) {
			defer func() { _ = recover() }()
			l.Close()
		}(l)
	}
}

// CreateBlock builds a block of blockTypeID, delegating to whichever
// service registered it. internalBlockID identifies the new block
// instance within its owning Instance; a blank id is replaced with a
// generated one.
func (r *Registry) CreateBlock(internalBlockID, blockTypeID string, args ...string) (engine.Block, error) {
	if blockTypeID == "" {
		return nil, ffeerr.New(ffeerr.NullArgument, "Registry.CreateBlock", nil)
	}

	state := r.state.Load()
	bound, ok := state.services[blockTypeID]
	if !ok {
		return nil, ffeerr.New(ffeerr.NotFound, "Registry.CreateBlock", nil)
	}

	handle, err := bound.builder.BuildBlock(blockTypeID, args)
	if err != nil {
		return nil, ffeerr.New(ffeerr.Instantiation, "Registry.CreateBlock", err)
	}
	if internalBlockID == "" {
		internalBlockID = uuid.New().String()
	}

	return newPluginBlock(internalBlockID, blockTypeID, handle, bound.blocks, r.log), nil
}

// Close atomically swaps in an empty state and tears down every
// outgoing plugin process.
func (r *Registry) Close() {
	prev := r.state.Swap(emptyState)
	r.closeLoaders(prev.loaders)
}
