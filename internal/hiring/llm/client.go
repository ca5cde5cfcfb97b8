// Package llm talks to the language-model and speech-to-text services and
// classifies their failures into the hiring error taxonomy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Provider selects the API endpoint.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// CompletionRequest is a single prompt for the model.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
	// JSON asks the model for a JSON object response.
	JSON bool
}

// Completer produces one completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Config configures Client.
type Config struct {
	Provider           Provider
	APIKey             string
	Model              string
	TranscriptionModel string
	BaseURL            string
	Timeout            time.Duration
}

// Client implements Completer and Transcriber on top of an OpenAI-compatible API.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		apiCfg.BaseURL = cfg.BaseURL
	case cfg.Provider == ProviderGroq:
		apiCfg.BaseURL = groqBaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logger.Named("llm"),
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: missing API key", e.ErrMisconfigured)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.logger.Error("Completion failed",
			zap.String("model", c.cfg.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", Classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", e.ErrUnparsable)
	}

	c.logger.Debug("Completion finished",
		zap.String("model", c.cfg.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: missing API key", e.ErrMisconfigured)
	}

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   audio,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		c.logger.Error("Transcription failed", zap.String("file", filename), zap.Error(err))
		return "", Classify(err)
	}
	return resp.Text, nil
}

// Classify maps an upstream API failure onto the error taxonomy. Errors that
// match no category are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	status, code, message := 0, "", err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	lower := strings.ToLower(message)
	switch {
	case status == http.StatusTooManyRequests || code == "rate_limit_exceeded":
		return fmt.Errorf("%w: %s", e.ErrRateLimited, message)
	case code == "context_length_exceeded" || status == http.StatusRequestEntityTooLarge ||
		strings.Contains(lower, "maximum context length") || strings.Contains(lower, "too many tokens"):
		return fmt.Errorf("%w: %s", e.ErrInputTooLong, message)
	case status == http.StatusUnauthorized || code == "invalid_api_key":
		return fmt.Errorf("%w: %s", e.ErrMisconfigured, message)
	case strings.Contains(lower, "invalid file format") || strings.Contains(lower, "unsupported file") ||
		strings.Contains(lower, "could not be decoded"):
		return fmt.Errorf("%w: %s", e.ErrUnsupportedMedia, message)
	}
	return err
}
