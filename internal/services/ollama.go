package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"

	"github.com/ollama/ollama/api"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// Ollama provides an implementation of the LLM interface for interacting with
// Ollama's language models, and doubles as the embedding backend for the
// vector index. It manages connections to a single Ollama server instance.
type Ollama struct {
	host           string
	model          string
	embeddingModel string

	client *api.Client
}

// NewOllama creates a new Ollama instance with the specified host URL, chat
// model and embedding model names. The host parameter should be a valid URL
// pointing to an Ollama server. If the provided host URL is invalid, the
// function will panic.
func NewOllama(host, model, embeddingModel string) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:           host,
		model:          model,
		embeddingModel: embeddingModel,
		client:         api.NewClient(u, &http.Client{}),
	}
}

// Chat implements the LLM interface by streaming responses from the Ollama
// model. It accepts a context for cancellation, a system prompt and a slice of
// messages representing the conversation history. The function returns an
// iterator that yields response tokens as strings and potential errors.
func (o Ollama) Chat(ctx context.Context, systemPrompt string, messages []models.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]api.Message, len(messages))
		for i, msg := range messages {
			msgs[i] = api.Message{
				Role:    string(msg.Role),
				Content: msg.Content,
			}
		}
		if systemPrompt != "" {
			msgs = slices.Insert(msgs, 0, api.Message{
				Role:    "system",
				Content: systemPrompt,
			})
		}

		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if !yield(res.Message.Content, nil) {
				cancel()
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}

// Complete sends a single prompt to the Ollama model and returns the full
// response. It is used by the analysis pipeline for non-streaming calls such
// as requirement extraction.
func (o Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	f := false
	req := api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Stream: &f,
	}

	var response string

	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		response = res.Message.Content
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	return response, nil
}

// Embed returns the embedding vector for the given text using the configured
// embedding model.
func (o Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  o.embeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	vec := make([]float32, len(res.Embedding))
	for i, v := range res.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
