// Command loanctl is an operator client for the loan orchestrator.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const usage = `usage: loanctl <command> [flags]

commands:
  chat       interactive chat over the websocket API
  pipeline   run the verification pipeline for a customer
  retrieve   list stored records of a customer
`

func main() {
	log.SetFlags(log.Ltime)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(os.Args[2:])
	case "pipeline":
		err = runPipeline(os.Args[2:])
	case "retrieve":
		err = runRetrieve(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

// Frame is the websocket envelope.
type Frame struct {
	Type       string `json:"type"`
	Ts         int64  `json:"ts"`
	SessionID  string `json:"session_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Message    string `json:"message,omitempty"`
	AgentType  string `json:"agent_type,omitempty"`
	Status     string `json:"status,omitempty"`
	Code       string `json:"code,omitempty"`
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	addr := fs.String("addr", "ws://localhost:8080/v1/ws", "WebSocket server address")
	customer := fs.String("customer", "", "Customer id, e.g. CUST0001")
	sessionID := fs.String("session", "", "Resume an existing session")
	_ = fs.Parse(args)

	fmt.Printf("Connecting to %s...\n", *addr)
	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	hello := Frame{Type: "hello", Ts: time.Now().UnixMilli(), SessionID: *sessionID, CustomerID: *customer}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}
	var ack Frame
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}
	if ack.Type != "hello_ack" {
		return fmt.Errorf("hello failed: %s %s", ack.Code, ack.Message)
	}

	fmt.Printf("Session established: %s\n", ack.SessionID)
	fmt.Println("Type a message and press Enter to send. /quit to exit.")

	replies := make(chan Frame)
	go func() {
		defer close(replies)
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			replies <- f
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			fmt.Println("Bye!")
			return nil
		}

		msg := Frame{
			Type:      "chat",
			Ts:        time.Now().UnixMilli(),
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
			Message:   input,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("send: %w", err)
		}

		select {
		case f, ok := <-replies:
			if !ok {
				return fmt.Errorf("connection closed")
			}
			printFrame(f)
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return nil
		}
	}
}

func printFrame(f Frame) {
	switch f.Type {
	case "reply":
		fmt.Printf("[%s] %s\n", f.AgentType, f.Message)
		if f.Status != "success" {
			fmt.Printf("(status: %s)\n", f.Status)
		}
	case "error":
		fmt.Printf("error %s: %s\n", f.Code, f.Message)
	default:
		fmt.Printf("[%s]\n", f.Type)
	}
}

func runPipeline(args []string) error {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "HTTP API address")
	customer := fs.String("customer", "", "Customer id, e.g. CUST0001")
	async := fs.Bool("async", false, "Return as soon as the run is created")
	_ = fs.Parse(args)
	if *customer == "" {
		return fmt.Errorf("-customer is required")
	}

	url := *addr + "/v1/pipeline/runs"
	if !*async {
		url += "?wait=true"
	}
	body, _ := json.Marshal(map[string]string{"customer_id": *customer})

	client := &http.Client{Timeout: 30 * time.Minute}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	return printJSON(resp)
}

func runRetrieve(args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "HTTP API address")
	customer := fs.String("customer", "", "Customer id, e.g. CUST0001")
	_ = fs.Parse(args)
	if *customer == "" {
		return fmt.Errorf("-customer is required")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(*addr + "/v1/customers/" + *customer + "/results")
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	return printJSON(resp)
}

func printJSON(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		out.Reset()
		out.Write(data)
	}
	fmt.Println(out.String())
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
