package registry

// net/rpc request/response plumbing for BuilderService and
// BlockService. hashicorp/go-plugin's net/rpc transport requires each
// exported method to take a single args value and a single reply
// pointer, so every call below is a thin struct-in/struct-out wrapper
// around the real interfaces in proto.go.

import "net/rpc"

type buildBlockArgs struct {
	BlockTypeID string
	Args        []string
}

type builderRPCServer struct {
	impl   BuilderService
	blocks BlockService
}

func (s *builderRPCServer) ExpectedEngineVersion(_ struct{}, reply *string) error {
	v, err := s.impl.ExpectedEngineVersion()
	*reply = v
	return err
}

func (s *builderRPCServer) SupportedBlockTypeIDs(_ struct{}, reply *[]string) error {
	v, err := s.impl.SupportedBlockTypeIDs()
	*reply = v
	return err
}

func (s *builderRPCServer) BuildBlock(args buildBlockArgs, reply *string) error {
	handle, err := s.impl.BuildBlock(args.BlockTypeID, args.Args)
	*reply = handle
	return err
}

func (s *builderRPCServer) State(handle string, reply *int) error {
	v, err := s.blocks.State(handle)
	*reply = v
	return err
}

func (s *builderRPCServer) HasError(handle string, reply *bool) error {
	v, err := s.blocks.HasError(handle)
	*reply = v
	return err
}

func (s *builderRPCServer) Run(handle string, reply *struct{}) error {
	return s.blocks.Run(handle)
}

func (s *builderRPCServer) Stop(handle string, reply *struct{}) error {
	return s.blocks.Stop(handle)
}

func (s *builderRPCServer) Abort(handle string, reply *struct{}) error {
	return s.blocks.Abort(handle)
}

func (s *builderRPCServer) Reset(handle string, reply *struct{}) error {
	return s.blocks.Reset(handle)
}

func (s *builderRPCServer) SetReady(handle string, reply *struct{}) error {
	return s.blocks.SetReady(handle)
}

type textArgs struct {
	Handle string
	Text   string
}

func (s *builderRPCServer) SetInputText(args textArgs, reply *struct{}) error {
	return s.blocks.SetInputText(args.Handle, args.Text)
}

func (s *builderRPCServer) InputText(handle string, reply *string) error {
	v, err := s.blocks.InputText(handle)
	*reply = v
	return err
}

func (s *builderRPCServer) SetResultText(args textArgs, reply *struct{}) error {
	return s.blocks.SetResultText(args.Handle, args.Text)
}

func (s *builderRPCServer) ResultText(handle string, reply *string) error {
	v, err := s.blocks.ResultText(handle)
	*reply = v
	return err
}

func (s *builderRPCServer) IsModified(handle string, reply *bool) error {
	v, err := s.blocks.IsModified(handle)
	*reply = v
	return err
}

func (s *builderRPCServer) ResetModified(handle string, reply *struct{}) error {
	return s.blocks.ResetModified(handle)
}

// builderRPCClient is the host-side stub implementing both
// BuilderService and BlockService over a single net/rpc connection.
type builderRPCClient struct {
	client *rpc.Client
}

func (c *builderRPCClient) ExpectedEngineVersion() (string, error) {
	var reply string
	err := c.client.Call("Plugin.ExpectedEngineVersion", struct{}{}, &reply)
	return reply, err
}

func (c *builderRPCClient) SupportedBlockTypeIDs() ([]string, error) {
	var reply []string
	err := c.client.Call("Plugin.SupportedBlockTypeIDs", struct{}{}, &reply)
	return reply, err
}

func (c *builderRPCClient) BuildBlock(blockTypeID string, args []string) (string, error) {
	var reply string
	err := c.client.Call("Plugin.BuildBlock", buildBlockArgs{BlockTypeID: blockTypeID, Args: args}, &reply)
	return reply, err
}

func (c *builderRPCClient) State(handle string) (int, error) {
	var reply int
	err := c.client.Call("Plugin.State", handle, &reply)
	return reply, err
}

func (c *builderRPCClient) HasError(handle string) (bool, error) {
	var reply bool
	err := c.client.Call("Plugin.HasError", handle, &reply)
	return reply, err
}

func (c *builderRPCClient) Run(handle string) error {
	return c.client.Call("Plugin.Run", handle, &struct{}{})
}

func (c *builderRPCClient) Stop(handle string) error {
	return c.client.Call("Plugin.Stop", handle, &struct{}{})
}

func (c *builderRPCClient) Abort(handle string) error {
	return c.client.Call("Plugin.Abort", handle, &struct{}{})
}

func (c *builderRPCClient) Reset(handle string) error {
	return c.client.Call("Plugin.Reset", handle, &struct{}{})
}

func (c *builderRPCClient) SetReady(handle string) error {
	return c.client.Call("Plugin.SetReady", handle, &struct{}{})
}

func (c *builderRPCClient) SetInputText(handle, text string) error {
	return c.client.Call("Plugin.SetInputText", textArgs{Handle: handle, Text: text}, &struct{}{})
}

func (c *builderRPCClient) InputText(handle string) (string, error) {
	var reply string
	err := c.client.Call("Plugin.InputText", handle, &reply)
	return reply, err
}

func (c *builderRPCClient) SetResultText(handle, text string) error {
	return c.client.Call("Plugin.SetResultText", textArgs{Handle: handle, Text: text}, &struct{}{})
}

func (c *builderRPCClient) ResultText(handle string) (string, error) {
	var reply string
	err := c.client.Call("Plugin.ResultText", handle, &reply)
	return reply, err
}

func (c *builderRPCClient) IsModified(handle string) (bool, error) {
	var reply bool
	err := c.client.Call("Plugin.IsModified", handle, &reply)
	return reply, err
}

func (c *builderRPCClient) ResetModified(handle string) error {
	return c.client.Call("Plugin.ResetModified", handle, &struct{}{})
}
