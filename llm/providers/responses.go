package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/initializ/hmm/llm"
)

// ResponsesClient implements llm.Client using the OpenAI Responses API.
type ResponsesClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewResponsesClient creates a new Responses API client.
func NewResponsesClient(cfg llm.ClientConfig) *ResponsesClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &ResponsesClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *ResponsesClient) ModelID() string { return c.model }

// Chat sends a non-streaming Responses API request and maps the result back
// into the provider-agnostic ChatResponse shape.
func (c *ResponsesClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := c.buildRequest(req)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("responses api request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("responses api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var rr responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decoding responses api response: %w", err)
	}

	return c.toChatResponse(&rr), nil
}

func (c *ResponsesClient) toChatResponse(rr *responsesResponse) *llm.ChatResponse {
	result := &llm.ChatResponse{
		Message: llm.ChatMessage{Role: llm.RoleAssistant},
	}

	for _, out := range rr.Output {
		switch out.Type {
		case "message":
			for _, part := range out.Content {
				if part.Type == "output_text" {
					result.Message.Content += part.Text
				}
			}
		case "function_call":
			result.Message.ToolCalls = append(result.Message.ToolCalls, llm.ToolCall{
				ID:   out.CallID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      out.Name,
					Arguments: out.Arguments,
				},
			})
		}
	}

	if len(result.Message.ToolCalls) > 0 {
		result.FinishReason = "tool_calls"
	} else {
		result.FinishReason = "stop"
	}

	if rr.Usage != nil {
		result.Usage = llm.UsageInfo{
			PromptTokens:     rr.Usage.InputTokens,
			CompletionTokens: rr.Usage.OutputTokens,
			TotalTokens:      rr.Usage.TotalTokens,
		}
	}

	return result
}

func (c *ResponsesClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// --- Request types ---

type responsesRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Input        []responsesInput `json:"input"`
	Tools        []responsesTool  `json:"tools,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	MaxTokens    int              `json:"max_output_tokens,omitempty"`
}

// responsesInput is a union type for Responses API input items.
// It can be a message (role+content) or a function_call_output.
type responsesInput struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	Type      string `json:"type,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	Output string `json:"output,omitempty"`
}

// responsesTool is the Responses API tool format (flat, not nested under "function").
type responsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func (c *ResponsesClient) buildRequest(req *llm.ChatRequest) responsesRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var instructions string
	var inputs []responsesInput

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			if instructions != "" {
				instructions += "\n"
			}
			instructions += msg.Content

		case llm.RoleUser:
			inputs = append(inputs, responsesInput{Role: "user", Content: msg.Content})

		case llm.RoleAssistant:
			if msg.Content != "" {
				inputs = append(inputs, responsesInput{Role: "assistant", Content: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				inputs = append(inputs, responsesInput{
					Type:      "function_call",
					CallID:    tc.ID,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}

		case llm.RoleTool:
			inputs = append(inputs, responsesInput{
				Type:   "function_call_output",
				CallID: msg.ToolCallID,
				Output: msg.Content,
			})
		}
	}

	var tools []responsesTool
	for _, t := range req.Tools {
		tools = append(tools, responsesTool{
			Type:        "function",
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	return responsesRequest{
		Model:        model,
		Instructions: instructions,
		Input:        inputs,
		Tools:        tools,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}
}

// --- Response types ---

type responsesResponse struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Output []responsesOutput `json:"output"`
	Usage  *responsesUsage   `json:"usage,omitempty"`
}

type responsesOutput struct {
	Type    string                 `json:"type"` // "message" or "function_call"
	Role    string                 `json:"role,omitempty"`
	Content []responsesContentPart `json:"content,omitempty"`

	ID        string `json:"id,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type responsesContentPart struct {
	Type string `json:"type"` // "output_text"
	Text string `json:"text"`
}

type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
