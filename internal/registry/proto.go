package registry

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is the shared magic-cookie contract between the host
// process and every plugin subprocess. A mismatched cookie or
// protocol version fails the handshake before any builder service is
// consulted.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FLOWFORGE_PLUGIN",
	MagicCookieValue: "block-builder",
}

// PluginMap names the single exported plugin kind every subprocess
// must register under.
var PluginMap = map[string]plugin.Plugin{
	"builder": &BuilderPlugin{},
}

// BuilderService is implemented by a plugin process. It advertises the
// engine version it was built against and the blockTypeIds it can
// build, and constructs block instances on request. The constructed
// block stays resident in the plugin process; BuildBlock returns an
// opaque handle used by BlockService to forward the block's lifecycle
// calls.
type BuilderService interface {
	ExpectedEngineVersion() (string, error)
	SupportedBlockTypeIDs() ([]string, error)
	BuildBlock(blockTypeID string, args []string) (string, error)
}

// BlockService forwards engine.Block method calls to a block instance
// resident in a plugin process, addressed by the handle BuildBlock
// returned. pluginBlock is the host-side engine.Block that delegates
// every call here.
type BlockService interface {
	State(handle string) (int, error)
	HasError(handle string) (bool, error)
	Run(handle string) error
	Stop(handle string) error
	Abort(handle string) error
	Reset(handle string) error
	SetReady(handle string) error
	SetInputText(handle, text string) error
	InputText(handle string) (string, error)
	SetResultText(handle, text string) error
	ResultText(handle string) (string, error)
	IsModified(handle string) (bool, error)
	ResetModified(handle string) error
}

// BuilderPlugin is the plugin.Plugin implementation shared by host and
// plugin binaries over net/rpc, following the dispense pattern
// hashicorp/go-plugin documents for a single-service plugin kind.
type BuilderPlugin struct {
	// Impl is set by the plugin binary before plugin.Serve; nil on the
	// host side, where only Client is ever called.
	Impl BuilderService
	// Blocks is set by the plugin binary: the BlockService backing the
	// instances BuildBlock hands out.
	Blocks BlockService
}

func (p *BuilderPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &builderRPCServer{impl: p.Impl, blocks: p.Blocks}, nil
}

func (p *BuilderPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &builderRPCClient{client: c}, nil
}
