package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/globaltrustbank/loanorch/internal/adapter/notify"
	"github.com/globaltrustbank/loanorch/internal/adapter/offer"
	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/config"
	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/invoker"
	"github.com/globaltrustbank/loanorch/internal/repository"
	"github.com/globaltrustbank/loanorch/internal/router"
	"github.com/globaltrustbank/loanorch/internal/session"
	"github.com/globaltrustbank/loanorch/internal/underwriting"
)

var (
	// ErrNoAgents is returned when no conversational agent is configured.
	ErrNoAgents = errors.New("no agents configured")
	// ErrInvalidCustomerID is returned for ids not shaped like CUST0001.
	ErrInvalidCustomerID = errors.New("invalid customer id")
	// ErrEmptyMessage is returned for blank chat turns.
	ErrEmptyMessage = errors.New("message is required")
)

// Service is the loan orchestrator: conversational turns, the verification
// pipeline and the post-submission audit.
type Service struct {
	store    repository.Store
	config   *config.Config
	router   *router.Router
	invoker  *invoker.Invoker
	sessions *session.Manager
	analyzer *underwriting.Analyzer
	offers   offer.Generator
	notifier notify.Sender
	agents   []agent.Handle
	audit    agent.Handle
	stages   map[string]agent.Handle
	flight   singleflight.Group
	now      func() time.Time

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithRouter replaces the default routing rules.
func WithRouter(r *router.Router) Option {
	return func(s *Service) { s.router = r }
}

// WithInvoker replaces the invoker built from configuration.
func WithInvoker(inv *invoker.Invoker) Option {
	return func(s *Service) { s.invoker = inv }
}

// WithOfferGenerator replaces the rate card offer generator.
func WithOfferGenerator(g offer.Generator) Option {
	return func(s *Service) { s.offers = g }
}

// WithSessions shares a session manager.
func WithSessions(m *session.Manager) Option {
	return func(s *Service) { s.sessions = m }
}

// WithConversationAgents overrides the agents the router may pick from.
func WithConversationAgents(handles []agent.Handle) Option {
	return func(s *Service) { s.agents = handles }
}

// New creates the service. The agent client serves every agent by name.
func New(store repository.Store, agentClient agent.Client, cfg *config.Config, decider underwriting.Decider, notifier notify.Sender, opts ...Option) *Service {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Service{
		store:    store,
		config:   cfg,
		router:   router.Default(),
		sessions: session.NewManager(),
		analyzer: underwriting.NewAnalyzer(decider),
		notifier: notifier,
		agents: []agent.Handle{
			agent.NewHandle(domain.AgentPrequalification, agentClient),
			agent.NewHandle(domain.AgentApplication, agentClient),
			agent.NewHandle(domain.AgentLoanStatus, agentClient),
		},
		audit:    agent.NewHandle(domain.AgentAudit, agentClient),
		stages:   make(map[string]agent.Handle),
		now:      time.Now,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
	for _, st := range verificationStages {
		s.stages[st.key] = agent.NewHandle(st.agentName, agentClient)
	}
	s.invoker = invoker.New(invoker.Config{
		MaxRetries:    cfg.InvokeMaxRetries,
		Timeout:       cfg.InvokeTimeout,
		MaxTimeout:    cfg.InvokeMaxTimeout,
		TimeoutFactor: cfg.InvokeTimeoutFactor,
		BaseDelay:     cfg.InvokeBaseDelay,
		MaxJitter:     cfg.InvokeMaxJitter,
	})
	s.offers = offer.NewRateCardGenerator(s)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions exposes the session manager.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Close cancels background work and waits for it to stop.
func (s *Service) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// Wait blocks until background audits and pipelines finish.
func (s *Service) Wait() {
	s.bg.Wait()
}

func (s *Service) goBackground(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.bgCtx)
	}()
}

// GetCustomer reads a customer record. Concurrent lookups of the same id
// share one store query.
func (s *Service) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	v, err, _ := s.flight.Do(customerID, func() (interface{}, error) {
		return s.store.GetCustomer(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}
	c, _ := v.(*domain.Customer)
	return c, nil
}

// stageThread is a throwaway ThreadHolder for calls outside a conversation.
type stageThread struct {
	thread string
}

func (t *stageThread) Thread() string          { return t.thread }
func (t *stageThread) SetThread(thread string) { t.thread = thread }
