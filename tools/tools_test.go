package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/initializ/hmm/archival"
	"github.com/initializ/hmm/recall"
	"github.com/initializ/hmm/storageerr"
	"github.com/initializ/hmm/workingcontext"
)

// failingArchival is an archival.Store whose every method returns a
// StorageError, used to exercise the fatal-result escalation path.
type failingArchival struct{}

func (failingArchival) Insert(context.Context, string, map[string]any) (string, error) {
	return "", storageerr.Wrap("archival.Insert", errors.New("disk full"))
}
func (failingArchival) Search(context.Context, string, int, int) ([]archival.Result, error) {
	return nil, storageerr.Wrap("archival.Search", errors.New("disk full"))
}
func (failingArchival) All(context.Context, int) ([]archival.Result, error) { return nil, nil }
func (failingArchival) Delete(context.Context, string) (bool, error)        { return false, nil }
func (failingArchival) Clear(context.Context) error                        { return nil }
func (failingArchival) Count() uint64                                      { return 0 }
func (failingArchival) Close() error                                       { return nil }

// failingRecall is a recall.Store whose Search returns a StorageError.
type failingRecall struct{}

func (failingRecall) Append(string, string, map[string]any) (int64, error) { return 0, nil }
func (failingRecall) Recent(int) ([]recall.Message, error)                 { return nil, nil }
func (failingRecall) All() ([]recall.Message, error)                      { return nil, nil }
func (failingRecall) Search(string, int, int) ([]recall.Message, error) {
	return nil, storageerr.Wrap("recall.Search", errors.New("disk full"))
}
func (failingRecall) Delete(int64) (bool, error) { return false, nil }
func (failingRecall) Clear() error               { return nil }
func (failingRecall) Close() error               { return nil }

func TestSendMessageNeverPanicsOnBadArgs(t *testing.T) {
	d := NewDispatcher(workingcontext.New(), nil, nil)
	r := d.Execute(context.Background(), SendMessage, json.RawMessage(`{not valid json`))
	if r.Status != "error" {
		t.Errorf("expected error status for malformed args, got %q", r.Status)
	}
}

func TestUnknownFunctionReturnsError(t *testing.T) {
	d := NewDispatcher(workingcontext.New(), nil, nil)
	r := d.Execute(context.Background(), "does_not_exist", json.RawMessage(`{}`))
	if r.Status != "error" {
		t.Error("expected error for unknown function")
	}
}

func TestCoreMemoryAppendSuccess(t *testing.T) {
	wc := workingcontext.New()
	d := NewDispatcher(wc, nil, nil)
	r := d.Execute(context.Background(), CoreMemoryAppend, json.RawMessage(`{"section":"human","content":"likes tea"}`))
	if r.Status != "success" {
		t.Fatalf("expected success, got %q: %s", r.Status, r.Message)
	}
	got, _ := wc.Get("human")
	if got == "" {
		t.Error("expected human section to be updated")
	}
}

func TestCoreMemoryAppendMissingSection(t *testing.T) {
	wc := workingcontext.New()
	d := NewDispatcher(wc, nil, nil)
	r := d.Execute(context.Background(), CoreMemoryAppend, json.RawMessage(`{"section":"nope","content":"x"}`))
	if r.Status != "error" {
		t.Error("expected error for nonexistent section")
	}
}

func TestCoreMemoryReplaceNotFound(t *testing.T) {
	wc := workingcontext.New()
	d := NewDispatcher(wc, nil, nil)
	r := d.Execute(context.Background(), CoreMemoryReplace, json.RawMessage(`{"section":"human","old_content":"zzz","new_content":"y"}`))
	if r.Status != "error" {
		t.Error("expected error when old_content not found")
	}
}

func TestArchivalStorageErrorIsFatal(t *testing.T) {
	d := NewDispatcher(workingcontext.New(), nil, failingArchival{})
	r := d.Execute(context.Background(), ArchivalMemoryInsert, json.RawMessage(`{"content":"x"}`))
	if r.Status != "error" {
		t.Fatalf("expected error status, got %q", r.Status)
	}
	if !r.Fatal {
		t.Error("expected a StorageError from Archival.Insert to be marked Fatal")
	}
}

func TestRecallStorageErrorIsFatal(t *testing.T) {
	d := NewDispatcher(workingcontext.New(), failingRecall{}, nil)
	r := d.Execute(context.Background(), ConversationSearch, json.RawMessage(`{"query":"x"}`))
	if r.Status != "error" {
		t.Fatalf("expected error status, got %q", r.Status)
	}
	if !r.Fatal {
		t.Error("expected a StorageError from Recall.Search to be marked Fatal")
	}
}

func TestContractViolationIsNotFatal(t *testing.T) {
	wc := workingcontext.New()
	d := NewDispatcher(wc, nil, nil)
	r := d.Execute(context.Background(), CoreMemoryAppend, json.RawMessage(`{"section":"nope","content":"x"}`))
	if r.Fatal {
		t.Error("expected a ContractViolation (unknown section) to not be marked Fatal")
	}
}

func TestShouldContinue(t *testing.T) {
	if ShouldContinue(SendMessage) {
		t.Error("send_message should stop the heartbeat")
	}
	if !ShouldContinue(CoreMemoryAppend) {
		t.Error("core_memory_append should continue the heartbeat")
	}
}

func TestFormatResultShape(t *testing.T) {
	r := Result{Status: "success", Message: "Appended to human"}
	got := FormatResult(CoreMemoryAppend, r)
	want := "Function: core_memory_append\nStatus: success\nMessage: Appended to human"
	if got != want {
		t.Errorf("FormatResult = %q, want %q", got, want)
	}
}

func TestFormatResultIncludesOutput(t *testing.T) {
	r := Result{Status: "success", Message: "done", Output: map[string]any{"section": "human"}}
	got := FormatResult(CoreMemoryAppend, r)
	if !containsAll(got, "Function: core_memory_append", "Status: success", "Message: done", "Output:") {
		t.Errorf("FormatResult missing expected parts: %s", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
