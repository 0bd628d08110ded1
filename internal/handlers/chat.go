package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmaxmax/go-sse"

	"github.com/verityhq/compliance-auditor/internal/models"
	"github.com/verityhq/compliance-auditor/internal/pipeline"
)

const systemPromptFormat = `You are a compliance analysis assistant. Your role is to:
1. Analyze internal requirement documents against compliance regulations
2. Identify compliance gaps and issues
3. Provide specific recommendations for achieving compliance

## COMPLIANCE DOCUMENTS:
%s

## INTERNAL REQUIREMENT DOCUMENTS:
%s

When answering questions:
- Compare the internal documents against the compliance documents
- Reference specific sections from both document types
- Clearly state compliance status (Compliant / Partially Compliant / Non-Compliant)
- Identify specific gaps between internal requirements and compliance regulations
- Provide actionable recommendations
- If the user greets you or asks something unrelated, respond naturally but guide them back to compliance analysis`

func buildSystemPrompt(res pipeline.Result) string {
	complianceContext := "No compliance documents selected."
	if len(res.ComplianceResults) > 0 {
		sections := make([]string, len(res.ComplianceResults))
		for i, item := range res.ComplianceResults {
			sections[i] = fmt.Sprintf("**Internal Requirement:** %s\n**Compliance Analysis:** %s",
				item.Requirement, item.ComplianceInfo)
		}
		complianceContext = strings.Join(sections, "\n\n---\n\n")
	}

	internalContext := "No internal documents selected."
	if res.InternalContent != "" {
		internalContext = res.InternalContent
	}

	return fmt.Sprintf(systemPromptFormat, complianceContext, internalContext)
}

// HandleChat processes one chat turn and streams the response as server-sent
// events. The stream carries status events while the analysis runs, one
// requirements event once extraction finishes, token events for the LLM
// response, and a final done event. Any failure is reported as an error event
// and ends the stream.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	publish := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			m.logger.Error("Failed to marshal event payload",
				slog.String("event", event),
				slog.String(errLoggerKey, err.Error()))
			return
		}
		msg := sse.Message{Type: sse.Type(event)}
		msg.AppendData(string(data))
		if _, err := msg.WriteTo(w); err != nil {
			m.logger.Error("Failed to write event",
				slog.String("event", event),
				slog.String(errLoggerKey, err.Error()))
			return
		}
		flusher.Flush()
	}

	res, err := m.analyzer.Analyze(r.Context(), req.SelectedCompliance, req.SelectedInternal,
		func(message string, requirementsCount, complianceResultsCount int) {
			publish(models.EventStatus, models.StatusEvent{
				Message:                message,
				RequirementsCount:      requirementsCount,
				ComplianceResultsCount: complianceResultsCount,
			})
		})
	if err != nil {
		m.logger.Error("Analysis failed", slog.String(errLoggerKey, err.Error()))
		publish(models.EventError, models.ErrorEvent{Error: err.Error()})
		return
	}

	if len(res.Requirements) > 0 {
		complianceResults := res.ComplianceResults
		if complianceResults == nil {
			complianceResults = []models.ComplianceResult{}
		}
		publish(models.EventRequirements, models.RequirementsEvent{
			Requirements:      res.Requirements,
			ComplianceResults: complianceResults,
		})
	}

	messages := make([]models.ChatMessage, 0, len(req.ChatHistory)+1)
	messages = append(messages, req.ChatHistory...)
	messages = append(messages, models.ChatMessage{
		Role:    models.RoleUser,
		Content: req.Message,
	})

	for token, err := range m.llm.Chat(r.Context(), buildSystemPrompt(res), messages) {
		if err != nil {
			m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			publish(models.EventError, models.ErrorEvent{Error: err.Error()})
			return
		}
		if token != "" {
			publish(models.EventToken, models.TokenEvent{Token: token})
		}
	}

	publish(models.EventDone, models.DoneEvent{Complete: true})
}
