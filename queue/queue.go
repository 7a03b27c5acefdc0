// Package queue implements the bounded FIFO message queue that sits
// between the working context and the LLM: a running summary in slot
// zero, pressure warnings as the token budget fills, and eviction with
// recursive summarization once it overflows.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/initializ/hmm/llm"
	"github.com/initializ/hmm/recall"
	"github.com/initializ/hmm/tokencount"
)

const (
	// DefaultWarningThreshold is the fraction of the token budget at
	// which a pressure-warning entry is injected.
	DefaultWarningThreshold = 0.70
	// DefaultFlushThreshold is the fraction of the token budget at which
	// the oldest third of the queue is evicted and summarized.
	DefaultFlushThreshold = 0.95

	pressureWarningText = "Memory pressure detected. Save important data immediately."

	initialSummary = "Conversation summary: No previous interactions."

	// evictedTextLimit bounds how much evicted text is folded into the
	// extractive fallback summary.
	evictedTextLimit = 500
)

// Entry is a single queued message plus whether it is a pressure warning
// (so coalescing can recognize it without re-parsing content).
type Entry struct {
	Message   llm.ChatMessage
	IsWarning bool
}

// Config controls queue behavior.
type Config struct {
	MaxTokens        int
	WarningThreshold float64
	FlushThreshold   float64
	Counter          tokencount.Counter
	Summarizer       llm.Summarizer
	// Recall is a non-owning handle to the durable recall store. Evicted
	// messages are persisted here, in original order, before the running
	// summary is rewritten. Nil disables persistence (evicted messages are
	// simply dropped), which is useful for tests that don't care about C2.
	Recall recall.Store
}

// Manager is the bounded FIFO queue manager (C5).
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	summary string
	entries []Entry
}

// New creates a Manager with the given configuration, defaulting
// thresholds when unset.
func New(cfg Config) *Manager {
	if cfg.WarningThreshold == 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.FlushThreshold == 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	return &Manager{cfg: cfg, summary: initialSummary}
}

// Append adds a new message to the queue, then checks pressure thresholds,
// evicting and summarizing if the flush threshold is crossed.
func (m *Manager) Append(ctx context.Context, msg llm.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, Entry{Message: msg})
	return m.checkPressure(ctx)
}

// Messages returns the current queue contents (excluding the running
// summary, which is rendered separately via Summary()).
func (m *Manager) Messages() []llm.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]llm.ChatMessage, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Message
	}
	return out
}

// Summary returns the current running summary held in slot zero.
func (m *Manager) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// Reset clears the queue back to its initial empty state.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.summary = initialSummary
}

// checkPressure must be called with m.mu held.
func (m *Manager) checkPressure(ctx context.Context) error {
	tokens := m.tokenCountLocked()
	budget := m.cfg.MaxTokens

	if budget <= 0 {
		return nil
	}

	ratio := float64(tokens) / float64(budget)

	if ratio >= m.cfg.FlushThreshold {
		return m.evictLocked(ctx)
	}

	if ratio >= m.cfg.WarningThreshold {
		m.injectWarningLocked()
	}

	return nil
}

func (m *Manager) tokenCountLocked() int {
	msgs := make([]tokencount.Message, 0, len(m.entries)+1)
	msgs = append(msgs, tokencount.Message{Role: "system", Content: m.summary})
	for _, e := range m.entries {
		msgs = append(msgs, tokencount.Message{
			Role:    string(e.Message.Role),
			Content: e.Message.Content,
			Name:    e.Message.Name,
		})
	}
	return m.cfg.Counter.CountMessages(msgs)
}

// injectWarningLocked appends a pressure-warning system entry unless the
// last entry in the queue is already a warning (coalescing repeats).
func (m *Manager) injectWarningLocked() {
	if len(m.entries) > 0 && m.entries[len(m.entries)-1].IsWarning {
		return
	}
	m.entries = append(m.entries, Entry{
		Message:   llm.ChatMessage{Role: llm.RoleSystem, Content: pressureWarningText},
		IsWarning: true,
	})
}

// evictLocked removes the oldest third of the queue (at least one entry)
// and folds it into the running summary, then appends a fresh
// pressure-warning entry for the post-eviction state if still warranted.
func (m *Manager) evictLocked(ctx context.Context) error {
	n := len(m.entries)
	if n == 0 {
		return nil
	}

	// n counts only the non-summary entries, so n/3 is the one-third rule
	// (len(queue)-1)/3 with the summary slot included in len(queue).
	k := n / 3
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	evicted := m.entries[:k]
	m.entries = m.entries[k:]

	if m.cfg.Recall != nil {
		for _, e := range evicted {
			if _, err := m.cfg.Recall.Append(string(e.Message.Role), e.Message.Content, nil); err != nil {
				return fmt.Errorf("persisting evicted message: %w", err)
			}
		}
	}

	var b strings.Builder
	for _, e := range evicted {
		b.WriteString(string(e.Message.Role))
		b.WriteString(": ")
		b.WriteString(e.Message.Content)
		b.WriteString("\n")
	}
	evictedText := b.String()

	newSummary, err := m.summarize(ctx, evictedText)
	if err != nil {
		newSummary = m.fallbackSummary(evictedText)
	}
	m.summary = newSummary

	// Re-check pressure after eviction in case the budget is still tight.
	tokens := m.tokenCountLocked()
	if m.cfg.MaxTokens > 0 && float64(tokens)/float64(m.cfg.MaxTokens) >= m.cfg.WarningThreshold {
		m.injectWarningLocked()
	}

	return nil
}

func (m *Manager) summarize(ctx context.Context, evictedText string) (string, error) {
	if m.cfg.Summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	return m.cfg.Summarizer.Summarize(ctx, m.summary, evictedText)
}

// fallbackSummary implements the extractive fallback used when the
// external summarizer errors: the prior summary plus a truncated excerpt
// of the evicted text.
func (m *Manager) fallbackSummary(evictedText string) string {
	excerpt := evictedText
	if len(excerpt) > evictedTextLimit {
		excerpt = excerpt[:evictedTextLimit]
	}
	return m.summary + "\n\nRecent activity: " + excerpt + "..."
}
