package client

import (
	"slices"

	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
)

// ExtendedClient is a SmartAccountClient plus named capabilities, e.g. the
// plugin manager actions.
type ExtendedClient struct {
	*SmartAccountClient
	capabilities aa.Capabilities
}

// Extend attaches the capabilities built by fn. Names colliding with client
// methods, ignoring case, are dropped.
func (c *SmartAccountClient) Extend(fn func(*SmartAccountClient) aa.Capabilities) *ExtendedClient {
	return (&ExtendedClient{SmartAccountClient: c, capabilities: aa.Capabilities{}}).Extend(fn)
}

func (e *ExtendedClient) Extend(fn func(*SmartAccountClient) aa.Capabilities) *ExtendedClient {
	added := fn(e.SmartAccountClient).OmitMethods(e)
	return &ExtendedClient{
		SmartAccountClient: e.SmartAccountClient,
		capabilities:       lo.Assign(e.capabilities, added),
	}
}

func (e *ExtendedClient) Capability(name string) (any, bool) {
	v, ok := e.capabilities[name]
	return v, ok
}

func (e *ExtendedClient) CapabilityNames() []string {
	names := lo.Keys(e.capabilities)
	slices.Sort(names)
	return names
}
