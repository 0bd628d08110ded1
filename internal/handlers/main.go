// Package handlers exposes the HTTP surface of the compliance auditor: the
// home page, the document management API, and the streaming chat endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"iter"
	"log/slog"
	"net/http"

	complianceauditor "github.com/verityhq/compliance-auditor"
	"github.com/verityhq/compliance-auditor/internal/models"
	"github.com/verityhq/compliance-auditor/internal/pipeline"
)

const errLoggerKey = "err"

// LLM represents a large language model interface that provides chat
// functionality. It accepts a context, a system prompt and the conversation
// messages, returning an iterator that yields response tokens and potential
// errors.
type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []models.ChatMessage) iter.Seq2[string, error]
}

// Library defines the document index operations the handlers need: indexing
// uploads, listing by type, and deleting.
type Library interface {
	AddFile(ctx context.Context, path, docType string) (models.Document, error)
	List(ctx context.Context, docType string) ([]string, error)
	Delete(ctx context.Context, docType, docID string) error
}

// Analyzer runs the pre-chat compliance analysis and reports its progress
// through the status callback.
type Analyzer interface {
	Analyze(ctx context.Context, selectedCompliance, selectedInternal []string, onStatus pipeline.StatusFunc) (pipeline.Result, error)
}

// Main handles the core functionality of the chat application, tying the
// templates, the LLM, the document library and the analyzer together.
type Main struct {
	templates *template.Template

	llm      LLM
	library  Library
	analyzer Analyzer

	logger *slog.Logger
}

// NewMain creates a new Main instance with the provided collaborators. It
// parses the required HTML templates from the embedded filesystem.
func NewMain(llm LLM, library Library, analyzer Analyzer, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		complianceauditor.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		templates: tmpl,
		llm:       llm,
		library:   library,
		analyzer:  analyzer,
		logger:    logger.With(slog.String("module", "handlers")),
	}, nil
}

// HandleHealth reports service liveness.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
