package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts go-openai to the Runtime interface.
type OpenAIClient struct {
	client *openai.Client
	retry  Retry
}

// NewOpenAIClient builds a client for api.openai.com, or for baseURL when set
// (any OpenAI-compatible endpoint, including a local proxy).
func NewOpenAIClient(apiKey, baseURL string, httpTimeout time.Duration, retry Retry) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, &MissingKeyError{Env: "OPENAI_API_KEY"}
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), retry: retry.withDefaults(DefaultRetry)}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	oreq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]openai.ChatCompletionMessage, len(req.Messages)),
		Temperature: float32(req.Temperature),
	}
	for i, m := range req.Messages {
		oreq.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	if req.MaxTokens > 0 {
		oreq.MaxCompletionTokens = req.MaxTokens
	}

	var resp openai.ChatCompletionResponse
	err := c.retry.run(ctx, func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, oreq)
		return mapOpenAIError(err)
	})
	if err != nil {
		return nil, err
	}

	out := &GenerateResponse{
		ID: resp.ID,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: resp.Header().Get("X-Request-Id"),
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out, nil
}

// mapOpenAIError converts go-openai errors into this package's typed errors
// so retry and callers treat every provider alike.
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		if apiErr.Code != nil {
			e.Code = fmt.Sprint(apiErr.Code)
		}
		return classifyAPIError(e, nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := &APIError{StatusCode: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			e.Message = reqErr.Err.Error()
		}
		return classifyAPIError(e, nil)
	}
	return err
}
