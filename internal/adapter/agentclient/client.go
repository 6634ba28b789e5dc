// Package agentclient provides the HTTP client for the remote agent service
// with SSE streaming.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/globaltrustbank/loanorch/internal/agent"
)

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// EventHandler is called for each SSE event from the agent.
type EventHandler func(event SSEEvent) error

// InvokeRequest is the body posted to an agent.
type InvokeRequest struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
	Thread  string `json:"thread,omitempty"`
}

// DeltaEventData is a streamed text fragment.
type DeltaEventData struct {
	Text string `json:"text"`
}

// DoneEventData closes the stream.
type DoneEventData struct {
	FinalMessage string `json:"final_message"`
	Thread       string `json:"thread,omitempty"`
}

// ErrorEventData is an error reported inside the stream.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is an HTTP client for invoking agents.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ agent.Client = (*Client)(nil)

// NewClient creates a new agent client. Per-attempt deadlines come from the
// caller's context; the HTTP timeout only bounds runaway streams.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Invoke calls POST {base}/agents/{name}/invoke and collects the streamed reply.
func (c *Client) Invoke(ctx context.Context, agentName, message, thread string) (*agent.Response, error) {
	body, err := json.Marshal(&InvokeRequest{Agent: agentName, Message: message, Thread: thread})
	if err != nil {
		return nil, agent.Permanent("encode", fmt.Errorf("failed to marshal request: %w", err))
	}

	endpoint := c.baseURL + "/agents/" + url.PathEscape(agentName) + "/invoke"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, agent.Permanent("request", fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if thread != "" {
		httpReq.Header.Set("X-Thread-ID", thread)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError("invoke", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var (
		text     strings.Builder
		final    *DoneEventData
		streamed error
	)
	err = c.parseSSE(resp.Body, func(event SSEEvent) error {
		switch event.Event {
		case "delta":
			delta, err := ParseDeltaEvent(event.Data)
			if err != nil {
				return agent.Permanent("stream", err)
			}
			text.WriteString(delta.Text)
		case "done":
			done, err := ParseDoneEvent(event.Data)
			if err != nil {
				return agent.Permanent("stream", err)
			}
			final = done
		case "error":
			errEvt, err := ParseErrorEvent(event.Data)
			if err != nil {
				return agent.Permanent("stream", err)
			}
			streamed = classifyErrorEvent(errEvt)
			return streamed
		}
		return nil
	})
	if streamed != nil {
		return nil, streamed
	}
	if err != nil {
		var perm *agent.PermanentError
		if errors.As(err, &perm) {
			return nil, err
		}
		return nil, classifyTransportError("stream", err)
	}

	out := &agent.Response{Content: text.String(), Thread: thread}
	if final != nil {
		if final.FinalMessage != "" {
			out.Content = final.FinalMessage
		}
		if final.Thread != "" {
			out.Thread = final.Thread
		}
	}
	return out, nil
}

func classifyStatus(code int, body string) error {
	err := fmt.Errorf("agent returned status %d: %s", code, body)
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &agent.TransientError{Op: "invoke", Timeout: code == http.StatusGatewayTimeout, Err: err}
	default:
		return agent.Permanent("invoke", err)
	}
}

func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &agent.TransientError{Op: op, Timeout: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return agent.Transient(op, err)
}

func classifyErrorEvent(e *ErrorEventData) error {
	err := fmt.Errorf("%s: %s", e.Code, e.Message)
	switch e.Code {
	case "timeout":
		return &agent.TransientError{Op: "stream", Timeout: true, Err: err}
	case "rate_limited", "unavailable", "overloaded":
		return agent.Transient("stream", err)
	default:
		return agent.Permanent("stream", err)
	}
}

// parseSSE parses an SSE stream and calls the handler for each event.
func (c *Client) parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// ParseDeltaEvent parses a delta event data.
func ParseDeltaEvent(data string) (*DeltaEventData, error) {
	var delta DeltaEventData
	if err := json.Unmarshal([]byte(data), &delta); err != nil {
		return nil, fmt.Errorf("failed to parse delta event: %w", err)
	}
	return &delta, nil
}

// ParseDoneEvent parses a done event data.
func ParseDoneEvent(data string) (*DoneEventData, error) {
	var done DoneEventData
	if err := json.Unmarshal([]byte(data), &done); err != nil {
		return nil, fmt.Errorf("failed to parse done event: %w", err)
	}
	return &done, nil
}

// ParseErrorEvent parses an error event data.
func ParseErrorEvent(data string) (*ErrorEventData, error) {
	var errEvt ErrorEventData
	if err := json.Unmarshal([]byte(data), &errEvt); err != nil {
		return nil, fmt.Errorf("failed to parse error event: %w", err)
	}
	return &errEvt, nil
}
