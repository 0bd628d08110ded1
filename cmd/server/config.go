package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verityhq/compliance-auditor/internal/models"
	"github.com/verityhq/compliance-auditor/internal/services"
)

// llmService is what every provider must supply: streaming chat for the
// response phase and single-shot completion for requirement extraction.
type llmService interface {
	Chat(ctx context.Context, systemPrompt string, messages []models.ChatMessage) iter.Seq2[string, error]
	Complete(ctx context.Context, prompt string) (string, error)
}

type llmConfig interface {
	llm(ctx context.Context, logger *slog.Logger) (llmService, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port      string          `yaml:"port"`
	DataDir   string          `yaml:"dataDir"`
	LLM       llmConfig       `yaml:"llm"`
	Qdrant    qdrantConfig    `yaml:"qdrant"`
	Embedding embeddingConfig `yaml:"embedding"`
	Chunking  chunkingConfig  `yaml:"chunking"`
}

type qdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type embeddingConfig struct {
	Host      string `yaml:"host"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type chunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type openaiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port      string          `yaml:"port"`
		DataDir   string          `yaml:"dataDir"`
		LLM       map[string]any  `yaml:"llm"`
		Qdrant    qdrantConfig    `yaml:"qdrant"`
		Embedding embeddingConfig `yaml:"embedding"`
		Chunking  chunkingConfig  `yaml:"chunking"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.DataDir = rawConfig.DataDir
	c.Qdrant = rawConfig.Qdrant
	c.Embedding = rawConfig.Embedding
	c.Chunking = rawConfig.Chunking

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openaiConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (o ollamaConfig) llm(_ context.Context, _ *slog.Logger) (llmService, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, ""), nil
}

func (a anthropicConfig) llm(_ context.Context, _ *slog.Logger) (llmService, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, a.MaxTokens), nil
}

func (o openaiConfig) llm(_ context.Context, logger *slog.Logger) (llmService, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.Model, logger), nil
}

func (g geminiConfig) llm(ctx context.Context, _ *slog.Logger) (llmService, error) {
	if g.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	gem, err := services.NewGemini(ctx, apiKey, g.Model)
	if err != nil {
		return nil, err
	}
	return gem, nil
}

func closeLLM(llm llmService) error {
	if closer, ok := llm.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
