package registry

import (
	"errors"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

var errNotBuilderService = errors.New("registry: dispensed plugin does not implement BuilderService")

// launchedPlugin is the narrow surface the registry needs from a
// started plugin process: its dispensed builder service and a way to
// tear it down. hashicorp/go-plugin's *plugin.Client satisfies this
// directly through Client()+Dispense("builder") and Kill().
type launchedPlugin struct {
	client  *plugin.Client
	builder BuilderService
}

func (l *launchedPlugin) Close() {
	if l.client != nil {
		l.client.Kill()
	}
}

// PluginLauncher starts a plugin binary and dispenses its builder
// service. Abstracted so registry loading can be unit tested with a
// fake launcher that never spawns a real subprocess.
type PluginLauncher interface {
	Launch(archivePath string) (*launchedPlugin, error)
}

// processLauncher launches archivePath as a subprocess using the
// shared handshake and plugin map, the real counterpart used outside
// tests. handshakeTimeout bounds how long NewClient waits for the
// subprocess to complete the handshake; zero keeps go-plugin's
// default.
type processLauncher struct {
	handshakeTimeout time.Duration
	hclogger         hclog.Logger
}

func newProcessLauncher(handshakeTimeout time.Duration) processLauncher {
	return processLauncher{
		handshakeTimeout: handshakeTimeout,
		hclogger: hclog.New(&hclog.LoggerOptions{
			Name:   "flowforge-registry",
			Level:  hclog.Warn,
			Output: nil,
		}),
	}
}

func (p processLauncher) Launch(archivePath string) (*launchedPlugin, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(archivePath),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		StartTimeout:     p.handshakeTimeout,
		Logger:           p.hclogger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, err
	}

	raw, err := rpcClient.Dispense("builder")
	if err != nil {
		client.Kill()
		return nil, err
	}

	builder, ok := raw.(BuilderService)
	if !ok {
		client.Kill()
		return nil, errNotBuilderService
	}

	return &launchedPlugin{client: client, builder: builder}, nil
}
