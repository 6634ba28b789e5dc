// Package ws serves the conversational API over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/service"
	"github.com/globaltrustbank/loanorch/internal/session"
)

const (
	maxMessageSize = 64 * 1024
	readTimeout    = 120 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	turnTimeout    = 5 * time.Minute
	turnQueueSize  = 8
)

// Handler upgrades chat connections and feeds their turns to the service.
type Handler struct {
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the socket endpoint.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/ws", h.HandleWebSocket)
}

type connection struct {
	ws   *websocket.Conn
	send chan []byte
	// turns is owned by readPump; turnLoop drains it in arrival order.
	turns chan func()

	mu         sync.Mutex
	sessionID  string
	customerID string
	closed     bool
}

func (c *connection) session() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.customerID
}

func (c *connection) bind(sessionID, customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	if customerID != "" {
		c.customerID = customerID
	}
}

func (c *connection) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: failed to encode ws frame: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("WARN: ws send buffer full for session %s, dropping frame", c.sessionID)
	}
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// HandleWebSocket handles the upgrade and connection lifecycle.
// GET /v1/ws
func (h *Handler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade websocket: %v", err)
		return err
	}
	ws.SetReadLimit(maxMessageSize)

	conn := &connection{
		ws:    ws,
		send:  make(chan []byte, 16),
		turns: make(chan func(), turnQueueSize),
	}
	go h.writePump(conn)
	go h.turnLoop(conn)
	go h.readPump(conn)
	return nil
}

func (h *Handler) turnLoop(conn *connection) {
	for turn := range conn.turns {
		turn()
	}
	conn.close()
}

func (h *Handler) readPump(conn *connection) {
	defer close(conn.turns)

	_ = conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket error: %v", err)
			}
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(conn, message)
	}
}

func (h *Handler) writePump(conn *connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.ws.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write ws message: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleMessage(conn *connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		h.handleHello(conn, data)
	case TypeChat:
		h.handleChat(conn, data)
	case TypePing:
		sessionID, _ := conn.session()
		conn.sendJSON(BaseMessage{Type: TypePong, Ts: time.Now().UnixMilli(), SessionID: sessionID, RequestID: base.RequestID})
	default:
		sendError(conn, base.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (h *Handler) handleHello(conn *connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	customerID := ""
	if msg.CustomerID != "" {
		id, ok := domain.NormalizeCustomerID(msg.CustomerID)
		if !ok {
			sendError(conn, msg.RequestID, ErrorCodeBadRequest, service.ErrInvalidCustomerID.Error())
			return
		}
		customerID = id
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}
	conn.bind(sessionID, customerID)

	conn.sendJSON(HelloAckMessage{
		BaseMessage: BaseMessage{
			Type:      TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
			RequestID: msg.RequestID,
		},
	})
	log.Printf("INFO: websocket hello completed for session %s", sessionID)
}

func (h *Handler) handleChat(conn *connection, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sendError(conn, "", ErrorCodeInvalidMessage, "invalid chat message")
		return
	}

	sessionID, customerID := conn.session()
	if sessionID == "" {
		sendError(conn, msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}
	if msg.CustomerID != "" {
		customerID = msg.CustomerID
	}

	turn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()

		resp, err := h.service.HandleTurn(ctx, domain.ChatRequest{
			SessionID:  sessionID,
			CustomerID: customerID,
			Message:    msg.Message,
		})
		if err != nil {
			code := ErrorCodeInternal
			if errors.Is(err, service.ErrEmptyMessage) || errors.Is(err, service.ErrInvalidCustomerID) {
				code = ErrorCodeBadRequest
			}
			text := err.Error()
			if code == ErrorCodeInternal {
				log.Printf("ERROR: chat turn failed for session %s: %v", sessionID, err)
				text = "internal error"
			}
			sendError(conn, msg.RequestID, code, text)
			return
		}

		conn.sendJSON(ReplyMessage{
			BaseMessage: BaseMessage{
				Type:      TypeReply,
				Ts:        time.Now().UnixMilli(),
				SessionID: resp.SessionID,
				RequestID: msg.RequestID,
			},
			Message:   resp.Message,
			AgentType: string(resp.AgentType),
			AgentName: resp.AgentName,
			Status:    resp.Status,
		})
	}

	select {
	case conn.turns <- turn:
	default:
		sendError(conn, msg.RequestID, ErrorCodeBadRequest, "too many pending turns")
	}
}

func sendError(conn *connection, requestID, code, message string) {
	sessionID, _ := conn.session()
	conn.sendJSON(ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      TypeError,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
	})
}
