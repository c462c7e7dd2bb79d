package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/luxtick/luxtick_backend/config"
)

// Message is one chat-completions message. Content is a plain string
// for text messages or []ContentPart when an image rides along.
type Message struct {
	Role       string          `json:"role"`
	Content    interface{}     `json:"content"`
	ToolCallId string          `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallEntry `json:"tool_calls,omitempty"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// ToolCallEntry is the wire form of one requested tool call, carried
// verbatim back into the conversation on the next round.
type ToolCallEntry struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ToolDefinition advertises one callable tool to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// CompletionRequest is one model call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the assistant's reply, with any tool calls the
// model requested.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCallEntry
	FinishReason string
}

// LLMClient abstracts the chat-completions endpoint so the dispatcher
// and the receipt parser can be tested against fakes.
type LLMClient interface {
	Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)
}

// APIError is a non-200 from the model endpoint. Transient causes
// (rate limits, upstream outages) are retryable; the rest are not.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Body)
}

// IsTransientModelError reports whether the call may succeed on retry.
func IsTransientModelError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// Network-level failures are transient.
	return err != nil && !errors.Is(err, context.Canceled)
}

type openAIRequestBody struct {
	Model       string                   `json:"model"`
	Messages    []Message                `json:"messages"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
	Temperature float64                  `json:"temperature,omitempty"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
}

type openAIResponseBody struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role      string          `json:"role"`
			Content   string          `json:"content"`
			ToolCalls []ToolCallEntry `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient talks to any OpenAI-dialect chat-completions endpoint.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := config.GetLLMAPIKey()
	if apiKey == "" {
		return nil, errors.New("LLM_API_KEY is required")
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: config.GetLLMBaseURL(),
		client:  &http.Client{Timeout: config.GetLLMTimeout()},
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	model := request.Model
	if model == "" {
		model = config.GetConversationalModel()
	}

	reqBody := openAIRequestBody{
		Model:       model,
		Messages:    request.Messages,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	}
	if len(request.Tools) > 0 {
		tools := make([]map[string]interface{}, len(request.Tools))
		for i, tool := range request.Tools {
			tools[i] = map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			}
		}
		reqBody.Tools = tools
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResp openAIResponseBody
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	choice := apiResp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
	}, nil
}
