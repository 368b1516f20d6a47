// Package llm provides structured text generation using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/signalroom/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generation is one model response with its reported token usage.
type Generation struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
	Duration     time.Duration
}

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
			ollama.WithFormat("json"),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// NewFromLLM wraps an existing langchaingo model.
func NewFromLLM(model llms.Model, name string) *Model {
	return &Model{llm: model, modelName: name}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// GenerateJSON generates a JSON response for a system and user prompt.
// Fatal provider errors (auth, quota, rate limit) match ErrFatalAPI.
func (m *Model) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (*Generation, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(0),
		llms.WithMaxTokens(1024),
	)
	duration := time.Since(start)
	if err != nil {
		slog.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("generate json: %w", wrapFatalError(err))
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	gen := &Generation{Content: choice.Content, Duration: duration}
	gen.InputTokens = tokenCount(choice.GenerationInfo, "PromptTokens", "InputTokens", "input_tokens")
	gen.OutputTokens = tokenCount(choice.GenerationInfo, "CompletionTokens", "OutputTokens", "output_tokens")

	slog.Debug("generation complete",
		"model", m.modelName,
		"duration_ms", duration.Milliseconds(),
		"input_tokens", gen.InputTokens,
		"output_tokens", gen.OutputTokens,
	)
	return gen, nil
}

// tokenCount reads the first usage key a provider reported.
// Providers disagree on key names and integer widths.
func tokenCount(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
