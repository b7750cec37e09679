// Package ai wraps the two chat-completion providers used for module
// selection and result analysis. Providers return plain text; callers parse
// it as JSON with fixed fallback shapes, so downstream reporting never sees
// an AI failure as an error.
package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/example/msf-auditor/internal/config"
)

// Use selects which default model applies when the configuration leaves the
// model empty.
type Use int

const (
	// UseAnalysis covers result summarization (cheaper model on OpenAI).
	UseAnalysis Use = iota
	// UseSelection covers module selection.
	UseSelection
)

// Environment variables consulted when ai_config.api_key is empty.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// Default models per provider and use.
const (
	DefaultOpenAIAnalysisModel  = "gpt-4o-mini"
	DefaultOpenAISelectionModel = "gpt-4o"
	DefaultAnthropicModel       = "claude-3-5-sonnet-20241022"
)

// Request is a single chat-completion call. MaxTokens of zero leaves the
// provider default in place. JSONOnly asks the provider to constrain the
// reply to a JSON object where the API supports it.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSONOnly    bool
}

// Provider is a chat-completion backend. No retries, no streaming.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// NewProvider builds the configured provider. The API key comes from the
// configuration or, when empty, the provider's environment variable; neither
// being set is a construction error.
func NewProvider(cfg config.AIConfig, use Use) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		key, err := resolveKey(cfg.APIKey, EnvOpenAIKey)
		if err != nil {
			return nil, err
		}
		model := cfg.Model
		if model == "" {
			if use == UseSelection {
				model = DefaultOpenAISelectionModel
			} else {
				model = DefaultOpenAIAnalysisModel
			}
		}
		return newOpenAI(key, model), nil

	case config.ProviderAnthropic:
		key, err := resolveKey(cfg.APIKey, EnvAnthropicKey)
		if err != nil {
			return nil, err
		}
		model := cfg.Model
		if model == "" {
			model = DefaultAnthropicModel
		}
		return newAnthropic(key, model), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}

// HasCredentials reports whether a key is available for the configured
// provider, without constructing a client. Used by doctor.
func HasCredentials(cfg config.AIConfig) bool {
	env := EnvOpenAIKey
	if cfg.Provider == config.ProviderAnthropic {
		env = EnvAnthropicKey
	}
	_, err := resolveKey(cfg.APIKey, env)
	return err == nil
}

func resolveKey(configured, env string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key configured and %s is not set", env)
}
