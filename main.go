package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/globaltrustbank/loanorch/internal/adapter/agentclient"
	"github.com/globaltrustbank/loanorch/internal/adapter/notify"
	"github.com/globaltrustbank/loanorch/internal/config"
	"github.com/globaltrustbank/loanorch/internal/repository"
	"github.com/globaltrustbank/loanorch/internal/router"
	"github.com/globaltrustbank/loanorch/internal/service"
	handler "github.com/globaltrustbank/loanorch/internal/transport/http"
	"github.com/globaltrustbank/loanorch/internal/transport/rpc"
	"github.com/globaltrustbank/loanorch/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting loan orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("RPC Port: %d", cfg.RPCPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Agent backend: %s", cfg.AgentBackend)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if cfg.SeedDemoData {
		if err := repository.SeedDemoCustomers(ctx, db); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Printf("Seeded %d demo customers", len(repository.DemoCustomers()))
	}

	// Initialize agent client
	agentClient := agentclient.NewAgentClient(cfg)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize notification sender
	notifier := notify.NewSender(cfg.NotifyWebhookURL, cfg.NotifyRatePerSec)

	var opts []service.Option
	if cfg.RoutingRulesFile != "" {
		rules, err := router.LoadRules(cfg.RoutingRulesFile)
		if err != nil {
			log.Fatalf("Failed to load routing rules: %v", err)
		}
		r, err := router.New(rules)
		if err != nil {
			log.Fatalf("Failed to compile routing rules: %v", err)
		}
		opts = append(opts, service.WithRouter(r))
		log.Printf("Routing rules loaded from %s", cfg.RoutingRulesFile)
	}

	// Initialize service
	svc := service.New(db, agentClient, cfg, policyEngine, notifier, opts...)

	// Background loops
	loopCtx, stopLoops := context.WithCancel(ctx)
	go svc.RunNotificationDispatcher(loopCtx)
	go svc.Sessions().RunIdleSweeper(loopCtx, cfg.SessionIdleTTL, time.Minute)

	// HTTP and websocket server
	server := handler.NewServer(svc)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// RPC server
	rpcServer, err := rpc.NewServer(svc)
	if err != nil {
		log.Fatalf("Failed to initialize RPC server: %v", err)
	}
	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			log.Fatalf("Failed to start RPC server: %v", err)
		}
	}()

	log.Printf("HTTP API started on port %d", cfg.HTTPPort)
	log.Printf("RPC API started on port %d", cfg.RPCPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down loan orchestrator...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown RPC server gracefully: %v", err)
	}
	stopLoops()
	svc.Close()

	log.Println("Loan orchestrator stopped")
}
