package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL targets Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the chat model used for log analysis.
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultTemperature keeps answers close to deterministic.
	DefaultTemperature float32 = 0.2
)

var (
	// ErrEmptyPrompt is returned when the user prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrNoChoices is returned when the provider answers without any choice
	ErrNoChoices = errors.New("provider returned no choices")
	// ErrNoAPIKey is returned when no provider API key is configured
	ErrNoAPIKey = errors.New("LOGSAGE_PROVIDER_API_KEY environment variable not set")
)

// ReasoningRequest is a single system + user exchange.
type ReasoningRequest struct {
	System string
	User   string
}

// ChatAPI defines the interface for chat completion
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req ReasoningRequest) (string, error)
}

type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAIAdapter(apiKey, baseURL, model string, temperature float32) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIAdapter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
	}
}

// CreateChatCompletion calls the chat completions endpoint
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, req ReasoningRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// RequestsPerSecond throttles calls client side. Zero disables throttling.
	RequestsPerSecond float64
}

// Client wraps a chat API with validation and optional throttling
type Client struct {
	api     ChatAPI
	limiter *rate.Limiter
}

// NewClient creates a client for the default provider and model.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey, Temperature: DefaultTemperature})
}

// NewClientWithConfig creates a client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return newClient(NewOpenAIAdapter(cfg.APIKey, baseURL, cfg.Model, cfg.Temperature), cfg.RequestsPerSecond)
}

// NewClientFromEnv creates a client using LOGSAGE_PROVIDER_API_KEY
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("LOGSAGE_PROVIDER_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

func newClient(api ChatAPI, rps float64) *Client {
	c := &Client{api: api}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// Complete sends one request and returns the answer text. No retries.
func (c *Client) Complete(ctx context.Context, req ReasoningRequest) (string, error) {
	if strings.TrimSpace(req.User) == "" {
		return "", ErrEmptyPrompt
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	text, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	return text, nil
}
