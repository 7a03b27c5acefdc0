// Package tokencount provides token accounting for budgeting how much
// conversation history fits in a model's context window.
package tokencount

import (
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// messageOverhead is the fixed per-message token cost charged by the
// Chat Completions wire format on top of field content, regardless of
// provider.
const messageOverhead = 4

// replyPrimer is the fixed token cost of priming the model for a reply,
// added once per counted conversation.
const replyPrimer = 2

// Counter counts tokens for budgeting purposes.
type Counter interface {
	// Count returns the token count of a bare string.
	Count(text string) int
	// CountMessage returns the token count of a single chat message,
	// including the per-message wire-format overhead.
	CountMessage(role, content, name string) int
	// CountMessages sums CountMessage over a conversation and adds the
	// final reply primer.
	CountMessages(messages []Message) int
	// Truncate returns the longest prefix of text whose token count does
	// not exceed n.
	Truncate(text string, n int) string
}

// Message is the minimal shape CountMessages needs, avoiding an import
// cycle with the llm package.
type Message struct {
	Role    string
	Content string
	Name    string
}

// bpeCounter counts tokens using a real BPE encoding.
type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

// approxCounter is the degraded fallback used when no BPE encoding can be
// resolved for the requested model: roughly 4 characters per token.
type approxCounter struct{}

// NewCounter returns a Counter tuned for model. Model names are matched by
// prefix against the known OpenAI family; anything unrecognized falls back
// to cl100k_base, and if even that fails to load, to the approximate
// character-based counter so callers never have to handle a constructor
// error for an unusual model string.
func NewCounter(model string) Counter {
	encodingName := encodingForModel(model)
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return approxCounter{}
	}
	return &bpeCounter{enc: enc}
}

func encodingForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4"), strings.HasPrefix(m, "gpt-3.5"):
		return "cl100k_base"
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}

func (c *bpeCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *bpeCounter) CountMessage(role, content, name string) int {
	n := messageOverhead
	n += c.Count(role)
	n += c.Count(content)
	if name != "" {
		n += c.Count(name)
	}
	return n
}

func (c *bpeCounter) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += c.CountMessage(m.Role, m.Content, m.Name)
	}
	if len(messages) > 0 {
		total += replyPrimer
	}
	return total
}

func (approxCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

func (a approxCounter) CountMessage(role, content, name string) int {
	n := messageOverhead
	n += a.Count(role)
	n += a.Count(content)
	if name != "" {
		n += a.Count(name)
	}
	return n
}

func (a approxCounter) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += a.CountMessage(m.Role, m.Content, m.Name)
	}
	if len(messages) > 0 {
		total += replyPrimer
	}
	return total
}

// Truncate returns the longest token-id prefix of text that decodes back
// to a string whose own re-encoded length is at most n tokens. Encoding
// then decoding a token prefix is the standard BPE truncation idiom: it
// is not guaranteed to be byte-exact for every encoder, so the result is
// shrunk by one token at a time until it verifies against n.
func (c *bpeCounter) Truncate(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= n {
		return text
	}
	for k := n; k >= 0; k-- {
		candidate := c.enc.Decode(ids[:k])
		if c.Count(candidate) <= n {
			return candidate
		}
	}
	return ""
}

// Truncate caps text at n*4 characters, matching the char-per-token ratio
// Count uses, so the result always satisfies Count(result) <= n.
func (approxCounter) Truncate(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	max := n * 4
	if len(text) <= max {
		return text
	}
	return text[:max]
}
