// Package conversation drives single-turn chat exchanges against the
// compliance backend and folds streamed events into observable state. A
// conversation owns its message history and exactly one in-flight turn at a
// time; a second submit while a turn is streaming is rejected without side
// effects.
package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/verityhq/compliance-auditor/internal/models"
	"github.com/verityhq/compliance-auditor/internal/stream"
)

// ErrBusy is returned by Send when a turn is already in progress. The
// rejected call leaves history, turn state, and the network untouched.
var ErrBusy = errors.New("a turn is already streaming")

// Streamer opens one chat stream per call. Implementations issue a single
// request and never retry or reconnect; a non-success response surfaces as an
// error with no body.
type Streamer interface {
	StreamChat(ctx context.Context, req models.ChatRequest) (io.ReadCloser, error)
}

// Hooks are optional display-layer observers, invoked after the corresponding
// state change has been applied. They run on the goroutine driving Send.
type Hooks struct {
	Status       func(message string)
	Requirements func(requirements []string, results []models.ComplianceResult)
	Token        func(token string)
}

// Conversation is the turn state machine. All mutation of the history and the
// transient turn state happens here, in response to a submit or a dispatched
// stream event.
type Conversation struct {
	streamer Streamer
	hooks    Hooks
	logger   *slog.Logger

	mu                 sync.Mutex
	history            []models.ChatMessage
	selectedCompliance []string
	selectedInternal   []string

	streaming         bool
	accumulated       strings.Builder
	lastStatus        string
	requirements      []string
	complianceResults []models.ComplianceResult
}

// New creates a conversation that opens streams through s.
func New(s Streamer, logger *slog.Logger, hooks Hooks) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{
		streamer: s,
		hooks:    hooks,
		logger:   logger.With(slog.String("module", "conversation")),
	}
}

// SetSelection replaces the document ids sent with subsequent turns.
func (c *Conversation) SetSelection(compliance, internal []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedCompliance = slices.Clone(compliance)
	c.selectedInternal = slices.Clone(internal)
}

// Send runs one turn to completion: it appends the user message, opens the
// stream, applies events as they arrive, and returns once the stream has
// ended. Empty (after trimming) input is a no-op. Send returns ErrBusy when a
// turn is already streaming; every other outcome, including transport and
// backend failures, is reported through Status and leaves the machine idle so
// the user can retry. An assistant message is committed to history only when
// the stream completes with an explicit done event and a non-empty answer.
func (c *Conversation) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrBusy
	}
	c.streaming = true
	c.accumulated.Reset()
	c.lastStatus = ""
	c.requirements = nil
	c.complianceResults = nil

	// The history snapshot taken here is the context replayed to the backend;
	// the current input travels separately, so the user message is appended
	// after the snapshot. The append is optimistic: it happens before any
	// network success.
	req := models.ChatRequest{
		Message:            text,
		ChatHistory:        slices.Clone(c.history),
		SelectedCompliance: slices.Clone(c.selectedCompliance),
		SelectedInternal:   slices.Clone(c.selectedInternal),
	}
	c.history = append(c.history, models.ChatMessage{Role: models.RoleUser, Content: text})
	c.mu.Unlock()

	body, err := c.streamer.StreamChat(ctx, req)
	if err != nil {
		c.onError(err.Error())
		return nil
	}
	defer body.Close()

	parseErr := stream.Parse(body, stream.Handler{
		OnStatus:       c.onStatus,
		OnRequirements: c.onRequirements,
		OnToken:        c.onToken,
		OnDone:         c.onDone,
		OnError:        c.onError,
	}, c.logger)
	if parseErr != nil {
		c.logger.Error("Stream read failed", slog.String("err", parseErr.Error()))
	}

	// Stream end without an explicit done or error means the turn was cut
	// short: discard the partial answer and return to idle.
	c.mu.Lock()
	if c.streaming {
		c.streaming = false
		c.accumulated.Reset()
		c.lastStatus = "Error: response ended unexpectedly"
		c.mu.Unlock()
		if c.hooks.Status != nil {
			c.hooks.Status(c.Status())
		}
		return nil
	}
	c.mu.Unlock()
	return nil
}

// Clear wipes the history and all transient turn state.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.streaming = false
	c.accumulated.Reset()
	c.lastStatus = ""
	c.requirements = nil
	c.complianceResults = nil
}

// History returns a copy of the committed message history.
func (c *Conversation) History() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// IsStreaming reports whether a turn is in flight.
func (c *Conversation) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Status returns the most recent status line; statuses are not accumulated,
// latest wins.
func (c *Conversation) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// Requirements returns a copy of the requirements extracted during the
// current or most recent turn.
func (c *Conversation) Requirements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.requirements)
}

// ComplianceResults returns a copy of the compliance assessments from the
// current or most recent turn.
func (c *Conversation) ComplianceResults() []models.ComplianceResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.complianceResults)
}

func (c *Conversation) onStatus(message string) {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	c.lastStatus = message
	c.mu.Unlock()

	if c.hooks.Status != nil {
		c.hooks.Status(message)
	}
}

func (c *Conversation) onRequirements(requirements []string, results []models.ComplianceResult) {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	c.requirements = requirements
	c.complianceResults = results
	c.mu.Unlock()

	if c.hooks.Requirements != nil {
		c.hooks.Requirements(requirements, results)
	}
}

func (c *Conversation) onToken(token string) {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	// The builder is the single point of truth for in-progress content; each
	// fragment is appended to it directly, never through a snapshot.
	c.accumulated.WriteString(token)
	c.mu.Unlock()

	if c.hooks.Token != nil {
		c.hooks.Token(token)
	}
}

func (c *Conversation) onDone() {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	content := c.accumulated.String()
	if content != "" {
		c.history = append(c.history, models.ChatMessage{Role: models.RoleAssistant, Content: content})
	}
	c.accumulated.Reset()
	c.lastStatus = ""
	c.streaming = false
	c.mu.Unlock()
}

func (c *Conversation) onError(message string) {
	c.logger.Error("Turn failed", slog.String("err", message))

	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	// The partial answer of a failed turn is never committed.
	c.accumulated.Reset()
	c.lastStatus = "Error: " + message
	c.streaming = false
	c.mu.Unlock()

	if c.hooks.Status != nil {
		c.hooks.Status("Error: " + message)
	}
}
