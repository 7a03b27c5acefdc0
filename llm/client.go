package llm

import "context"

// ClientConfig configures a concrete Client implementation.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	TimeoutSecs int
}

// Client is the external LLM chat contract. Concrete implementations live
// under llm/providers; the rest of the module only depends on this
// interface so providers (and test doubles) are interchangeable.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ModelID() string
}

// Summarizer condenses text into a shorter summary. The queue manager uses
// it to compress evicted conversation spans; most Client implementations
// can satisfy this by issuing a plain chat completion with a summarization
// prompt, but it is kept as a separate narrow interface so a cheaper or
// specialized model can be wired in for summarization alone.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary, text string) (string, error)
}

// ChatSummarizer adapts any Client into a Summarizer by issuing a single
// chat completion with an instruction prompt.
type ChatSummarizer struct {
	Client Client
}

// NewChatSummarizer wraps client as a Summarizer.
func NewChatSummarizer(client Client) *ChatSummarizer {
	return &ChatSummarizer{Client: client}
}

func (s *ChatSummarizer) Summarize(ctx context.Context, priorSummary, text string) (string, error) {
	prompt := "Summarize the following conversation excerpt into a concise running summary. " +
		"Incorporate the prior summary below and produce a single updated summary paragraph.\n\n" +
		"Prior summary:\n" + priorSummary + "\n\nNew excerpt:\n" + text

	resp, err := s.Client.Chat(ctx, &ChatRequest{
		Model: s.Client.ModelID(),
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "You summarize conversation history concisely and factually."},
			{Role: RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
