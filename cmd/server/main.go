package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	complianceauditor "github.com/verityhq/compliance-auditor"
	"github.com/verityhq/compliance-auditor/internal/handlers"
	"github.com/verityhq/compliance-auditor/internal/index"
	"github.com/verityhq/compliance-auditor/internal/pipeline"
	"github.com/verityhq/compliance-auditor/internal/services"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgFile, err := os.Open(*cfgPath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating data directory: %w", err))
	}

	llm, err := cfg.LLM.llm(context.Background(), logger)
	if err != nil {
		log.Fatal(err)
	}

	boltDB, err := services.NewBoltDB(filepath.Join(dataDir, "documents.db"))
	if err != nil {
		log.Fatal(err)
	}

	qdrant, err := services.NewQdrant(cfg.Qdrant.Host, cfg.Qdrant.Port, logger)
	if err != nil {
		log.Fatal(err)
	}

	embedHost := cfg.Embedding.Host
	if embedHost == "" {
		embedHost = os.Getenv("OLLAMA_HOST")
	}
	embedder := services.NewOllama(embedHost, "", cfg.Embedding.Model)

	chunker, err := index.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		log.Fatal(err)
	}

	library, err := index.NewLibrary(context.Background(),
		boltDB, qdrant, embedder, chunker, cfg.Embedding.Dimension, logger)
	if err != nil {
		log.Fatal(err)
	}

	analyzer := pipeline.NewAnalyzer(library, llm, logger)

	m, err := handlers.NewMain(llm, library, analyzer, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(complianceauditor.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/api/health", m.HandleHealth)
	mux.HandleFunc("/api/chat", m.HandleChat)
	mux.HandleFunc("/api/documents", m.HandleDocuments)
	mux.HandleFunc("DELETE /api/documents/{docID}", m.HandleDeleteDocument)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := closeLLM(llm); err != nil {
			log.Printf("Failed to close llm: %v", err)
		}
		if err := qdrant.Close(); err != nil {
			log.Printf("Failed to close qdrant connection: %v", err)
		}
		if err := boltDB.Close(); err != nil {
			log.Printf("Failed to close document registry: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
