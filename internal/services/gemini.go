package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// Gemini provides an implementation of the LLM interface backed by Google's
// Gemini models.
type Gemini struct {
	model string

	client *genai.Client
}

// NewGemini creates a new Gemini instance with the specified API key and model
// name. The returned instance holds an open client; call Close when done.
func NewGemini(ctx context.Context, apiKey, model string) (Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return Gemini{}, fmt.Errorf("error creating client: %w", err)
	}

	return Gemini{
		model:  model,
		client: client,
	}, nil
}

// Close releases the underlying client.
func (g Gemini) Close() error {
	return g.client.Close()
}

func geminiRole(role models.Role) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}

func geminiText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}

// Chat streams responses from the Gemini model. Prior messages become the chat
// session history and the final user message is sent through the streaming
// API. The returned iterator yields response tokens and potential errors.
func (g Gemini) Chat(ctx context.Context, systemPrompt string, messages []models.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if len(messages) == 0 {
			yield("", errors.New("no messages to send"))
			return
		}

		model := g.client.GenerativeModel(g.model)
		if systemPrompt != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(systemPrompt)},
			}
		}

		session := model.StartChat()
		for _, msg := range messages[:len(messages)-1] {
			session.History = append(session.History, &genai.Content{
				Role:  geminiRole(msg.Role),
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}

		it := session.SendMessageStream(ctx, genai.Text(messages[len(messages)-1].Content))
		for {
			resp, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}
			if text := geminiText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// Complete sends a single prompt to the Gemini model and returns the full
// response text.
func (g Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	text := geminiText(resp)
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}
