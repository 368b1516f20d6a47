package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/signalroom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("embed: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

type stubLLM struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
}

func (s *stubLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	return s.resp, s.err
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestGenerateJSON(t *testing.T) {
	stub := &stubLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        `{"emotion":"joy"}`,
		GenerationInfo: map[string]any{"PromptTokens": 120, "CompletionTokens": int64(30)},
	}}}}
	m := NewFromLLM(stub, "test-model")

	gen, err := m.GenerateJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"emotion":"joy"}`, gen.Content)
	assert.Equal(t, int64(120), gen.InputTokens)
	assert.Equal(t, int64(30), gen.OutputTokens)
	assert.Equal(t, "test-model", m.Model())
	require.Len(t, stub.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, stub.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, stub.messages[1].Role)
}

func TestGenerateJSON_AnthropicUsageKeys(t *testing.T) {
	stub := &stubLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "{}",
		GenerationInfo: map[string]any{"InputTokens": 7, "OutputTokens": 3},
	}}}}
	gen, err := NewFromLLM(stub, "claude").GenerateJSON(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, int64(7), gen.InputTokens)
	assert.Equal(t, int64(3), gen.OutputTokens)
}

func TestGenerateJSON_Errors(t *testing.T) {
	t.Run("fatal provider error", func(t *testing.T) {
		stub := &stubLLM{err: errors.New("HTTP 401: invalid api key")}
		_, err := NewFromLLM(stub, "m").GenerateJSON(context.Background(), "s", "u")
		require.Error(t, err)
		assert.True(t, IsFatal(err))
	})

	t.Run("transient provider error", func(t *testing.T) {
		stub := &stubLLM{err: errors.New("connection reset by peer")}
		_, err := NewFromLLM(stub, "m").GenerateJSON(context.Background(), "s", "u")
		require.Error(t, err)
		assert.False(t, IsFatal(err))
	})

	t.Run("no choices", func(t *testing.T) {
		stub := &stubLLM{resp: &llms.ContentResponse{}}
		_, err := NewFromLLM(stub, "m").GenerateJSON(context.Background(), "s", "u")
		assert.Error(t, err)
	})
}

func TestNewModelUnsupportedProvider(t *testing.T) {
	_, err := NewModel(context.Background(), config.Config{LLMProvider: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestNewModelMissingKeys(t *testing.T) {
	_, err := NewModel(context.Background(), config.Config{LLMProvider: config.ProviderOpenAI})
	assert.Error(t, err)
	_, err = NewModel(context.Background(), config.Config{LLMProvider: config.ProviderAnthropic})
	assert.Error(t, err)
}
