// Command auditchat is an interactive terminal client for a running
// compliance-auditor server. It streams analysis progress and LLM responses
// into the terminal and manages the document selection for each turn.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/verityhq/compliance-auditor/internal/client"
	"github.com/verityhq/compliance-auditor/internal/conversation"
	"github.com/verityhq/compliance-auditor/internal/models"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Compliance auditor server URL")
	logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	backend := client.New(*serverURL)

	var selectedCompliance, selectedInternal []string

	conv := conversation.New(backend, logger, conversation.Hooks{
		Status: func(message string) {
			fmt.Println(yellow(message))
		},
		Requirements: func(requirements []string, _ []models.ComplianceResult) {
			fmt.Println(yellow(fmt.Sprintf("Extracted %d requirements", len(requirements))))
		},
		Token: func(token string) {
			fmt.Print(token)
		},
	})

	fmt.Println(boldGreen("Compliance Auditor"))
	fmt.Printf("Connected to %s\n", boldCyan(*serverURL))
	fmt.Println("Type a message to analyze, or /help for commands.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := runCommand(ctx, backend, conv, input,
				&selectedCompliance, &selectedInternal, red); quit {
				break
			}
			continue
		}

		fmt.Print(boldCyan("Assistant: "))
		fmt.Println()
		if err := conv.Send(ctx, input); err != nil {
			if errors.Is(err, conversation.ErrBusy) {
				fmt.Println(red("A turn is already in flight."))
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			continue
		}
		fmt.Println()

		if status := conv.Status(); strings.HasPrefix(status, "Error: ") {
			fmt.Println(red(status))
		}
		fmt.Println()
	}
}

func runCommand(
	ctx context.Context,
	backend *client.Client,
	conv *conversation.Conversation,
	input string,
	selectedCompliance, selectedInternal *[]string,
	errColor func(...any) string,
) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Println(`Commands:
  /docs                       List indexed documents
  /select <type> <id>...      Select documents for analysis (type: regulation|company_doc)
  /upload <type> <path>       Upload and index a document
  /delete <type> <id>         Delete a document
  /clear                      Clear the conversation
  /quit                       Exit`)
	case "/docs":
		for _, docType := range []string{models.DocTypeRegulation, models.DocTypeCompanyDoc} {
			docs, err := backend.ListDocuments(ctx, docType)
			if err != nil {
				fmt.Println(errColor(fmt.Sprintf("Error listing %s documents: %v", docType, err)))
				continue
			}
			fmt.Printf("%s: %s\n", docType, strings.Join(docs, ", "))
		}
	case "/select":
		if len(args) < 1 || !models.ValidDocType(args[0]) {
			fmt.Println(errColor("Usage: /select <regulation|company_doc> <id>..."))
			return false
		}
		if args[0] == models.DocTypeRegulation {
			*selectedCompliance = args[1:]
		} else {
			*selectedInternal = args[1:]
		}
		conv.SetSelection(*selectedCompliance, *selectedInternal)
		fmt.Printf("Selected %d %s document(s)\n", len(args)-1, args[0])
	case "/upload":
		if len(args) != 2 || !models.ValidDocType(args[0]) {
			fmt.Println(errColor("Usage: /upload <regulation|company_doc> <path>"))
			return false
		}
		res, err := backend.UploadDocument(ctx, args[1], args[0])
		if err != nil {
			fmt.Println(errColor(fmt.Sprintf("Error uploading: %v", err)))
			return false
		}
		fmt.Println(res.Message)
	case "/delete":
		if len(args) != 2 || !models.ValidDocType(args[0]) {
			fmt.Println(errColor("Usage: /delete <regulation|company_doc> <id>"))
			return false
		}
		res, err := backend.DeleteDocument(ctx, args[1], args[0])
		if err != nil {
			fmt.Println(errColor(fmt.Sprintf("Error deleting: %v", err)))
			return false
		}
		fmt.Println(res.Message)
	case "/clear":
		conv.Clear()
		fmt.Println("Conversation cleared.")
	case "/quit", "/exit":
		return true
	default:
		fmt.Println(errColor(fmt.Sprintf("Unknown command %s, try /help", cmd)))
	}

	return false
}
