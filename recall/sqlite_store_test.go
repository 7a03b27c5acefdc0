package recall

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.Append("user", "hello", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	id2, err := s.Append("assistant", "hi there", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("expected strictly increasing IDs, got %d then %d", id1, id2)
	}
}

func TestRecentReturnsChronologicalOrder(t *testing.T) {
	s := newTestStore(t)
	for _, content := range []string{"one", "two", "three"} {
		if _, err := s.Append("user", content, nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	msgs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Errorf("expected [two three] in chronological order, got [%s %s]", msgs[0].Content, msgs[1].Content)
	}
}

func TestAllReturnsChronologicalOrder(t *testing.T) {
	s := newTestStore(t)
	for _, content := range []string{"a", "b", "c"} {
		if _, err := s.Append("user", content, nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	msgs, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "a" || msgs[2].Content != "c" {
		t.Errorf("unexpected order: %+v", msgs)
	}
}

func TestSearchOrdersByTimestampDescending(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Append("user", "apple pie recipe", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append("user", "apple cider", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	results, err := s.Search("apple", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "apple cider" {
		t.Errorf("expected most recent match first, got %q", results[0].Content)
	}
}

func TestSearchPagination(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Append("user", "needle in haystack", nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	page, err := s.Search("needle", 2, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2 results, got %d", len(page))
	}
}

func TestAppendPersistsMetadata(t *testing.T) {
	s := newTestStore(t)
	meta := map[string]any{"source": "test"}
	if _, err := s.Append("user", "hello", meta); err != nil {
		t.Fatalf("Append: %v", err)
	}
	msgs, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if msgs[0].Metadata["source"] != "test" {
		t.Errorf("expected metadata to round-trip, got %+v", msgs[0].Metadata)
	}
}

func TestDeleteRemovesMessage(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Append("user", "gone soon", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	ok, err := s.Delete(id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Error("expected Delete to report true for an existing id")
	}
	msgs, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected message to be removed, got %d remaining", len(msgs))
	}
}

func TestDeleteUnknownIDReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.Delete(9999)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Error("expected Delete to report false for an unknown id")
	}
}

func TestClearRemovesAllMessages(t *testing.T) {
	s := newTestStore(t)
	for _, content := range []string{"a", "b", "c"} {
		if _, err := s.Append("user", content, nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	msgs, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty store after Clear, got %d messages", len(msgs))
	}
}
