// Package openai serves agents through an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/domain"
)

const (
	// maxThreadMessages bounds the history replayed for one thread.
	maxThreadMessages = 40
	// defaultMaxThreads bounds the threads kept in memory; the least recently
	// used thread is forgotten first.
	defaultMaxThreads = 1024
)

var systemPrompts = map[string]string{
	domain.AgentPrequalification: "You are the prequalification assistant of Global Trust Bank. Collect name, age, employment status, " +
		"monthly income and requested loan amount, then tell the customer whether they are eligible. " +
		"When eligible, state the customer ID and ask whether they want to proceed with the application.",
	domain.AgentApplication: "You are the application assistant of Global Trust Bank. Collect the loan application form " +
		"(full name, father's name, date of birth, address, PAN). When the form is complete, reply that the " +
		"application has been successfully submitted and include the customer ID.",
	domain.AgentLoanStatus: "You report the status of existing loan applications at Global Trust Bank.",
	domain.AgentAudit:      "You create audit records for loan processing steps. Confirm the record you created in one sentence.",
	domain.AgentIdentity: "You verify applicant identity documents. Start with a line 'Applicant Name: <full name>' and " +
		"state clearly whether identity is verified or list any discrepancy.",
	domain.AgentIncome:     "You verify applicant income documents and report whether income is verified and sufficient.",
	domain.AgentGuarantor:  "You verify the guarantor and report whether the guarantor is verified and adequate.",
	domain.AgentInspection: "You review the collateral inspection report and state whether documents are valid.",
	domain.AgentValuation:  "You review the collateral valuation and state whether the value is adequate.",
}

// Client implements agent.Client on top of go-openai. Threads are kept in memory.
type Client struct {
	client *goopenai.Client
	model  string

	mu         sync.Mutex
	threads    map[string]*threadState
	maxThreads int
	clock      uint64
}

type threadState struct {
	messages []goopenai.ChatCompletionMessage
	used     uint64
}

var _ agent.Client = (*Client)(nil)

// NewClient creates a new chat completion agent client.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client:     goopenai.NewClientWithConfig(cfg),
		model:      model,
		threads:    make(map[string]*threadState),
		maxThreads: defaultMaxThreads,
	}
}

// Invoke sends the message with the thread's history and the agent's system prompt.
func (c *Client) Invoke(ctx context.Context, agentName, message, thread string) (*agent.Response, error) {
	if thread == "" {
		thread = "thread_" + uuid.New().String()[:8]
	}

	history := c.history(thread)
	messages := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	if prompt, ok := systemPrompts[agentName]; ok {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: prompt})
	}
	messages = append(messages, history...)
	userMsg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: message}
	messages = append(messages, userMsg)

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, agent.ErrNoResponse
	}

	content := resp.Choices[0].Message.Content
	c.remember(thread, userMsg, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: content})
	return &agent.Response{Content: content, Thread: thread}, nil
}

func (c *Client) history(thread string) []goopenai.ChatCompletionMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.threads[thread]
	if !ok {
		return nil
	}
	out := make([]goopenai.ChatCompletionMessage, len(st.messages))
	copy(out, st.messages)
	return out
}

func (c *Client) remember(thread string, msgs ...goopenai.ChatCompletionMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.threads[thread]
	if !ok {
		c.evictLocked()
		st = &threadState{}
		c.threads[thread] = st
	}
	h := append(st.messages, msgs...)
	if len(h) > maxThreadMessages {
		h = h[len(h)-maxThreadMessages:]
	}
	c.clock++
	st.messages = h
	st.used = c.clock
}

// evictLocked drops least recently used threads until one more fits.
func (c *Client) evictLocked() {
	for len(c.threads) >= c.maxThreads && len(c.threads) > 0 {
		var oldest string
		var oldestUsed uint64
		first := true
		for id, st := range c.threads {
			if first || st.used < oldestUsed {
				oldest, oldestUsed, first = id, st.used, false
			}
		}
		delete(c.threads, oldest)
	}
}

// threadCount reports how many threads are held in memory.
func (c *Client) threadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.threads)
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &agent.TransientError{Op: "chat_completion", Timeout: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// No HTTP status means the request never completed.
		return agent.Transient("chat_completion", err)
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return &agent.TransientError{
			Op:      "chat_completion",
			Timeout: status == http.StatusGatewayTimeout,
			Err:     fmt.Errorf("status %d: %w", status, err),
		}
	}
	return agent.Permanent("chat_completion", fmt.Errorf("status %d: %w", status, err))
}
