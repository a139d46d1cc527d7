// Package ai wraps the OpenAI API for embedding, moderation, and chat
// completion calls.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// Message is a single role-tagged conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Embedding is the result of embedding a single text: the vector and the
// token count reported by the API for that input.
type Embedding struct {
	Vector     []float32
	TokenCount int
}

// Client wraps the OpenAI client with the configured model identifiers.
// Rate limit errors (HTTP 429) are retried with exponential backoff; all
// other provider errors are permanent and surface to the caller unchanged.
type Client struct {
	api            *openai.Client
	embeddingModel string
	chatModel      string
}

// NewClient creates an OpenAI-backed provider client. It fails fast when
// OPENAI_API_KEY is unset so sync and search refuse to run before reaching
// deep into the pipeline.
func NewClient(embeddingModel, chatModel string) (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	// openai-go reads OPENAI_API_KEY from the environment.
	api := openai.NewClient()

	return &Client{
		api:            &api,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) (*Embedding, error) {
	var result *Embedding

	operation := func() error {
		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("embedding response contained no data"))
		}

		result = &Embedding{
			Vector:     toFloat32(resp.Data[0].Embedding),
			TokenCount: int(resp.Usage.PromptTokens),
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// Moderate reports whether the moderation endpoint flags the text.
func (c *Client) Moderate(ctx context.Context, text string) (bool, error) {
	var flagged bool

	operation := func() error {
		resp, err := c.api.Moderations.New(ctx, openai.ModerationNewParams{
			Input: openai.ModerationNewParamsInputUnion{
				OfString: openai.String(text),
			},
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Results) == 0 {
			return backoff.Permanent(fmt.Errorf("moderation response contained no results"))
		}

		flagged = resp.Results[0].Flagged
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return false, err
	}
	return flagged, nil
}

// Complete sends the message history to the chat model and returns the
// produced assistant text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:    openai.ChatModel(c.chatModel),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	var answer string
	operation := func() error {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("chat response contained no choices"))
		}

		answer = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return "", err
	}
	return answer, nil
}

// newBackOff returns the retry profile used for rate-limited calls.
func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
