package queue

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/initializ/hmm/llm"
	"github.com/initializ/hmm/recall"
	"github.com/initializ/hmm/tokencount"
)

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string, string) (string, error) {
	return "", errors.New("summarizer unavailable")
}

type stubSummarizer struct{ out string }

func (s stubSummarizer) Summarize(context.Context, string, string) (string, error) {
	return s.out, nil
}

func newManager(t *testing.T, maxTokens int, summarizer llm.Summarizer) *Manager {
	t.Helper()
	return New(Config{
		MaxTokens:  maxTokens,
		Counter:    tokencount.NewCounter("gpt-4"),
		Summarizer: summarizer,
	})
}

func TestAppendBelowThresholdNoSideEffects(t *testing.T) {
	m := newManager(t, 100_000, failingSummarizer{})
	if err := m.Append(context.Background(), llm.ChatMessage{Role: llm.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(m.Messages()) != 1 {
		t.Errorf("expected 1 message, got %d", len(m.Messages()))
	}
	if m.Summary() != initialSummary {
		t.Errorf("expected unchanged initial summary, got %q", m.Summary())
	}
}

func TestWarningInjectedAboveWarningThreshold(t *testing.T) {
	// Small budget so a handful of messages crosses 70% quickly.
	m := newManager(t, 60, failingSummarizer{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "some moderately long message content here"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	msgs := m.Messages()
	foundWarning := false
	for _, msg := range msgs {
		if strings.Contains(msg.Content, "Memory pressure detected") {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Error("expected a pressure warning to be injected")
	}
}

func TestWarningCoalescesOnlyWhenLastSlotIsWarning(t *testing.T) {
	m := newManager(t, 1000, failingSummarizer{})

	countWarnings := func() int {
		n := 0
		for _, e := range m.entries {
			if e.IsWarning {
				n++
			}
		}
		return n
	}

	m.mu.Lock()
	m.injectWarningLocked()
	m.injectWarningLocked() // last slot is already the warning: must coalesce
	m.mu.Unlock()

	if got := countWarnings(); got != 1 {
		t.Fatalf("expected repeated injectWarningLocked to coalesce to 1 warning, got %d", got)
	}

	// Per the documented open question, a subsequent message separates the
	// warning from the tail, so the next injection re-injects rather than
	// coalescing.
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Message: llm.ChatMessage{Role: llm.RoleUser, Content: "hi"}})
	m.injectWarningLocked()
	m.mu.Unlock()

	if got := countWarnings(); got != 2 {
		t.Errorf("expected warning to be re-injected after an intervening message, got %d warnings", got)
	}
}

func TestEvictionTriggersAtFlushThreshold(t *testing.T) {
	m := newManager(t, 80, stubSummarizer{out: "condensed summary"})
	ctx := context.Background()
	before := 0
	for i := 0; i < 6; i++ {
		if err := m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "this is a reasonably long filler message for budget testing"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		before = len(m.Messages())
	}
	_ = before

	if m.Summary() != "condensed summary" {
		t.Errorf("expected summary to be updated by summarizer, got %q", m.Summary())
	}
}

func TestEvictionFallsBackOnSummarizerError(t *testing.T) {
	m := newManager(t, 80, failingSummarizer{})
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "this is a reasonably long filler message for budget testing"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if !strings.Contains(m.Summary(), "Recent activity:") {
		t.Errorf("expected extractive fallback summary, got %q", m.Summary())
	}
}

func TestEvictionRemovesAtLeastOneThird(t *testing.T) {
	m := newManager(t, 1, stubSummarizer{out: "s"}) // budget of 1 forces flush on first append
	ctx := context.Background()
	_ = m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "a"})
	_ = m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "b"})
	_ = m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "c"})
	_ = m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "d"})

	// With a budget of 1, every append re-triggers flush; queue should never
	// grow unbounded.
	if len(m.Messages()) > 4 {
		t.Errorf("expected bounded queue length, got %d", len(m.Messages()))
	}
}

func TestEvictionPersistsToRecallInOrder(t *testing.T) {
	store, err := recall.NewSQLiteStore(filepath.Join(t.TempDir(), "recall.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := New(Config{
		MaxTokens:  80,
		Counter:    tokencount.NewCounter("gpt-4"),
		Summarizer: stubSummarizer{out: "condensed summary"},
		Recall:     store,
	})
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := m.Append(ctx, llm.ChatMessage{Role: llm.RoleUser, Content: "this is a reasonably long filler message for budget testing"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := store.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("expected evicted messages to be persisted into recall")
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Errorf("expected monotonic ids reflecting original order, got %d then %d", all[i-1].ID, all[i].ID)
		}
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	m := newManager(t, 100_000, failingSummarizer{})
	_ = m.Append(context.Background(), llm.ChatMessage{Role: llm.RoleUser, Content: "hi"})
	m.Reset()
	if len(m.Messages()) != 0 {
		t.Error("expected empty queue after Reset")
	}
	if m.Summary() != initialSummary {
		t.Error("expected initial summary after Reset")
	}
}
