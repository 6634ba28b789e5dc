// Package agent defines the boundary to the remote agent service.
package agent

import "context"

// Response is a normalized agent completion.
type Response struct {
	Content string
	// Thread is the opaque continuation token returned by the service.
	Thread string
}

// Client invokes named agents on the remote agent service.
type Client interface {
	Invoke(ctx context.Context, agentName, message, thread string) (*Response, error)
}

// Handle is a single addressable agent.
type Handle interface {
	Name() string
	Invoke(ctx context.Context, message, thread string) (*Response, error)
}

type remoteHandle struct {
	name   string
	client Client
}

// NewHandle binds an agent name to the client that serves it.
func NewHandle(name string, client Client) Handle {
	return &remoteHandle{name: name, client: client}
}

func (h *remoteHandle) Name() string {
	return h.name
}

func (h *remoteHandle) Invoke(ctx context.Context, message, thread string) (*Response, error) {
	return h.client.Invoke(ctx, h.name, message, thread)
}

// Find returns the handle with the given name, or nil.
func Find(handles []Handle, name string) Handle {
	for _, h := range handles {
		if h.Name() == name {
			return h
		}
	}
	return nil
}
