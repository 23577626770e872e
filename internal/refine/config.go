package refine

import (
	"errors"
	"fmt"
)

// Provider selects the chat-completions endpoint shape.
type Provider string

const (
	// ProviderOpenAI talks to the public endpoint with bearer auth.
	ProviderOpenAI Provider = "openai"
	// ProviderAzure talks to a caller-supplied deployment URL with an
	// api-key header; the model is baked into the endpoint.
	ProviderAzure Provider = "azure"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel          = "gpt-4o-mini"
)

// Config holds the session-scoped provider settings. The credential is
// never written to durable storage and never transmitted anywhere but
// the configured endpoint.
type Config struct {
	Provider Provider
	APIKey   string
	// Endpoint is required for Azure: the full chat-completions URL of
	// the deployment.
	Endpoint string
	// Model defaults to gpt-4o-mini for OpenAI; ignored for Azure.
	Model string
}

// Validate reports whether the configuration is usable. These are the
// user-visible, retryable configuration errors.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAzure:
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	if c.APIKey == "" {
		return errors.New("API key is required")
	}
	if c.Provider == ProviderAzure && c.Endpoint == "" {
		return errors.New("Azure endpoint URL is required")
	}
	return nil
}

// url returns the request URL for the configured provider.
func (c Config) url() string {
	if c.Provider == ProviderAzure {
		return c.Endpoint
	}
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return defaultOpenAIEndpoint
}

// model returns the model name to send.
func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModel
}
