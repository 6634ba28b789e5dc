package helpers

import (
	"context"
	"strings"
	"sync"

	"github.com/globaltrustbank/loanorch/internal/agent"
)

// FakeReply is one scripted agent outcome.
type FakeReply struct {
	Content string
	Err     error
}

// FakeCall records an Invoke call.
type FakeCall struct {
	Agent   string
	Message string
	Thread  string
}

// FakeAgentClient is a scripted agent.Client. Queued replies are consumed in
// order; once a queue is empty the agent's default reply is used.
type FakeAgentClient struct {
	mu       sync.Mutex
	queues   map[string][]FakeReply
	defaults map[string]FakeReply
	calls    []FakeCall
}

func NewFakeAgentClient() *FakeAgentClient {
	return &FakeAgentClient{
		queues:   make(map[string][]FakeReply),
		defaults: make(map[string]FakeReply),
	}
}

// Script queues replies for an agent.
func (f *FakeAgentClient) Script(agentName string, replies ...FakeReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[agentName] = append(f.queues[agentName], replies...)
}

// Respond sets the reply an agent gives once its queue is empty.
func (f *FakeAgentClient) Respond(agentName, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults[agentName] = FakeReply{Content: content}
}

// Fail makes an agent fail with err once its queue is empty.
func (f *FakeAgentClient) Fail(agentName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults[agentName] = FakeReply{Err: err}
}

func (f *FakeAgentClient) Invoke(ctx context.Context, agentName, message, thread string) (*agent.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Agent: agentName, Message: message, Thread: thread})
	reply, ok := f.defaults[agentName]
	if q := f.queues[agentName]; len(q) > 0 {
		reply, ok = q[0], true
		f.queues[agentName] = q[1:]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		reply = FakeReply{Content: "OK from " + agentName}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	if thread == "" {
		thread = "thread_" + strings.ReplaceAll(strings.ToLower(agentName), " ", "_")
	}
	return &agent.Response{Content: reply.Content, Thread: thread}, nil
}

// Calls returns the number of calls made to an agent, or to every agent
// when agentName is empty.
func (f *FakeAgentClient) Calls(agentName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if agentName == "" {
		return len(f.calls)
	}
	n := 0
	for _, c := range f.calls {
		if c.Agent == agentName {
			n++
		}
	}
	return n
}

// CallLog returns a copy of every recorded call in order.
func (f *FakeAgentClient) CallLog() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
