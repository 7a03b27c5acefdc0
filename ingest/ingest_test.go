package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/initializ/hmm/archival"
	"github.com/initializ/hmm/recall"
)

type memRecall struct {
	msgs []recall.Message
}

func (m *memRecall) Append(role, content string, metadata map[string]any) (int64, error) {
	m.msgs = append(m.msgs, recall.Message{ID: int64(len(m.msgs) + 1), Role: role, Content: content, Metadata: metadata})
	return int64(len(m.msgs)), nil
}
func (m *memRecall) Recent(n int) ([]recall.Message, error)                  { return m.msgs, nil }
func (m *memRecall) All() ([]recall.Message, error)                          { return m.msgs, nil }
func (m *memRecall) Search(string, int, int) ([]recall.Message, error)       { return nil, nil }
func (m *memRecall) Delete(id int64) (bool, error) {
	for i, msg := range m.msgs {
		if msg.ID == id {
			m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
func (m *memRecall) Clear() error { m.msgs = nil; return nil }
func (m *memRecall) Close() error { return nil }

type memArchival struct {
	docs []string
}

func (m *memArchival) Insert(_ context.Context, content string, _ map[string]any) (string, error) {
	m.docs = append(m.docs, content)
	return "doc", nil
}
func (m *memArchival) Search(context.Context, string, int, int) ([]archival.Result, error) {
	return nil, nil
}
func (m *memArchival) All(context.Context, int) ([]archival.Result, error) { return nil, nil }
func (m *memArchival) Delete(context.Context, string) (bool, error)        { return false, nil }
func (m *memArchival) Clear(context.Context) error                        { m.docs = nil; return nil }
func (m *memArchival) Count() uint64                                      { return uint64(len(m.docs)) }
func (m *memArchival) Close() error                                       { return nil }

func testStores() (Stores, *map[string]*memRecall, *map[string]*memArchival) {
	recalls := map[string]*memRecall{}
	archivals := map[string]*memArchival{}
	return Stores{
		NewRecall: func(path string) (recall.Store, error) {
			r := &memRecall{}
			recalls[path] = r
			return r, nil
		},
		NewArchival: func(path string) (archival.Store, error) {
			a := &memArchival{}
			archivals[path] = a
			return a, nil
		},
	}, &recalls, &archivals
}

func writeJSON(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestIngestFlatList(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, []string{"hi", "hello", "how are you"})
	stores, recalls, _ := testStores()

	report, err := IngestFile(path, filepath.Join(dir, "recall.db"), filepath.Join(dir, "archival"), stores)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if report.Sessions != 1 || report.Messages != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
	r := (*recalls)[filepath.Join(dir, "recall.db")]
	if r == nil || len(r.msgs) != 3 {
		t.Fatalf("expected 3 recall messages, got %+v", r)
	}
	if r.msgs[0].Role != "user" || r.msgs[1].Role != "assistant" {
		t.Errorf("expected alternating roles starting with user, got %s then %s", r.msgs[0].Role, r.msgs[1].Role)
	}
}

func TestIngestSessionMapping(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, map[string]any{
		"sess-1": []map[string]string{{"role": "user", "content": "hi"}},
		"sess-2": []map[string]string{{"role": "user", "content": "hello"}},
	})
	stores, _, _ := testStores()

	report, err := IngestFile(path, filepath.Join(dir, "recall.db"), filepath.Join(dir, "archival"), stores)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if report.Sessions != 2 {
		t.Errorf("expected 2 sessions, got %d", report.Sessions)
	}
}

func TestIngestNestedWithConversationKey(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, map[string]any{
		"conv-a": map[string]any{
			"conversation": map[string]any{
				"sess-1": []map[string]string{{"role": "user", "content": "hi"}},
			},
		},
	})
	stores, recalls, archivals := testStores()

	report, err := IngestFile(path, filepath.Join(dir, "recall.db"), filepath.Join(dir, "archival"), stores)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if report.Conversations != 1 {
		t.Errorf("expected 1 conversation, got %d", report.Conversations)
	}
	expectedRecallPath := filepath.Join(dir, "conv-a", "recall.db")
	if _, ok := (*recalls)[expectedRecallPath]; !ok {
		t.Errorf("expected isolated recall store at %s, got keys %v", expectedRecallPath, keysOfRecall(*recalls))
	}
	_ = archivals
}

func TestIngestNestedWithoutConversationKey(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, map[string]any{
		"conv-b": map[string]any{
			"sess-1": []map[string]string{{"role": "user", "content": "hi"}},
		},
	})
	stores, _, _ := testStores()

	report, err := IngestFile(path, filepath.Join(dir, "recall.db"), filepath.Join(dir, "archival"), stores)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if report.Conversations != 1 || report.Sessions != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestIngestRejectsPathTraversalConversationID(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, map[string]any{
		"../escape": map[string]any{
			"sess-1": []map[string]string{{"role": "user", "content": "hi"}},
		},
	})
	stores, _, _ := testStores()

	_, err := IngestFile(path, filepath.Join(dir, "recall.db"), filepath.Join(dir, "archival"), stores)
	if err == nil {
		t.Error("expected error for path-traversal conversation id")
	}
}

func keysOfRecall(m map[string]*memRecall) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
