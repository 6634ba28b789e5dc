package ws

// Message types.
const (
	TypeHello    = "hello"
	TypeHelloAck = "hello_ack"
	TypeChat     = "chat"
	TypeReply    = "reply"
	TypeError    = "error"
	TypePing     = "ping"
	TypePong     = "pong"
)

// Error codes.
const (
	ErrorCodeInvalidMessage  = "INVALID_MESSAGE"
	ErrorCodeSessionRequired = "SESSION_REQUIRED"
	ErrorCodeBadRequest      = "BAD_REQUEST"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

// BaseMessage is the envelope shared by every frame.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HelloMessage opens or resumes a session.
type HelloMessage struct {
	BaseMessage
	CustomerID string `json:"customer_id,omitempty"`
}

// HelloAckMessage confirms the bound session.
type HelloAckMessage struct {
	BaseMessage
}

// ChatMessage is a user turn.
type ChatMessage struct {
	BaseMessage
	CustomerID string `json:"customer_id,omitempty"`
	Message    string `json:"message"`
}

// ReplyMessage carries the orchestrator answer to a chat turn.
type ReplyMessage struct {
	BaseMessage
	Message   string `json:"message"`
	AgentType string `json:"agent_type"`
	AgentName string `json:"agent_name,omitempty"`
	Status    string `json:"status"`
}

// ErrorMessage reports a rejected frame.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
