// Package rpc exposes the loan orchestrator over JSON-RPC for internal clients.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/service"
)

// ServiceName is the registered RPC receiver name.
const ServiceName = "LoanOrchestrator"

// Server accepts JSON-RPC connections.
type Server struct {
	mu        sync.Mutex
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the orchestrator service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("WARN: rpc accept error: %v", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if err := ln.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements orchestrator RPC methods.
type Handler struct {
	service *service.Service
}

// PipelineArgs identifies the customer to run the pipeline for.
type PipelineArgs struct {
	CustomerID string `json:"customer_id"`
}

// ResultsArgs identifies the customer whose records are listed.
type ResultsArgs struct {
	CustomerID string `json:"customer_id"`
}

// ResultsReply lists stored records.
type ResultsReply struct {
	CustomerID string               `json:"customer_id"`
	Results    []domain.AgentResult `json:"results"`
}

// Chat handles one conversational turn.
func (h *Handler) Chat(req *domain.ChatRequest, resp *domain.ChatResponse) error {
	if req == nil {
		return errors.New("chat request is required")
	}

	result, err := h.service.HandleTurn(context.Background(), *req)
	if err != nil {
		return err
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// RunPipeline runs the verification pipeline and waits for the recommendation.
func (h *Handler) RunPipeline(req *PipelineArgs, resp *domain.PipelineResult) error {
	if req == nil || req.CustomerID == "" {
		return errors.New("customer_id is required")
	}

	result, err := h.service.RunPipeline(context.Background(), req.CustomerID)
	if err != nil {
		return err
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// GetResults lists the stored records of a customer.
func (h *Handler) GetResults(req *ResultsArgs, resp *ResultsReply) error {
	if req == nil || req.CustomerID == "" {
		return errors.New("customer_id is required")
	}

	results, err := h.service.ListResults(context.Background(), req.CustomerID)
	if err != nil {
		return err
	}
	if resp != nil {
		resp.CustomerID = req.CustomerID
		resp.Results = results
	}
	return nil
}
