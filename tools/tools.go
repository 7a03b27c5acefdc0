// Package tools implements the fixed set of functions the agent can call:
// sending a reply, editing working context, and reading or writing to the
// recall and archival stores. Dispatch is a closed switch over the tool
// names, each decoding its arguments into its own typed call struct,
// rather than a reflection-based registry, since
// the tool surface here is fixed by the agent's contract with the model,
// not user-extensible.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/initializ/hmm/archival"
	"github.com/initializ/hmm/recall"
	"github.com/initializ/hmm/storageerr"
	"github.com/initializ/hmm/workingcontext"
)

// Name constants for the six built-in tools.
const (
	SendMessage           = "send_message"
	CoreMemoryAppend      = "core_memory_append"
	CoreMemoryReplace     = "core_memory_replace"
	ArchivalMemoryInsert  = "archival_memory_insert"
	ArchivalMemorySearch  = "archival_memory_search"
	ConversationSearch    = "conversation_search"
	defaultResultPageSize = 5
)

// Result is the outcome of executing a tool call.
type Result struct {
	Status  string // "success" or "error"
	Message string
	Output  any
	// Fatal marks a StorageError: a backing-store I/O failure that should
	// terminate the turn, as opposed to a ContractViolation (bad
	// arguments, unknown section, ...) which is folded back into the
	// conversation so the model can retry.
	Fatal bool
}

// Dispatcher executes tool calls against the agent's memory subsystems.
type Dispatcher struct {
	Context  *workingcontext.Context
	Recall   recall.Store
	Archival archival.Store
	PageSize int
}

// NewDispatcher creates a Dispatcher with the given backing stores.
func NewDispatcher(ctx *workingcontext.Context, r recall.Store, a archival.Store) *Dispatcher {
	return &Dispatcher{Context: ctx, Recall: r, Archival: a, PageSize: defaultResultPageSize}
}

// Execute dispatches a named tool call with raw JSON arguments. It never
// returns a Go error for malformed arguments or failed operations: both
// are reported as Result{Status: "error", ...} so the caller can always
// fold the result back into the conversation.
func (d *Dispatcher) Execute(ctx context.Context, name string, args json.RawMessage) Result {
	if err := ValidateArguments(name, args); err != nil {
		return errorResult(err.Error())
	}
	switch name {
	case SendMessage:
		var call sendMessageCall
		if err := json.Unmarshal(args, &call); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
		return d.sendMessage(call)

	case CoreMemoryAppend:
		var call coreMemoryAppendCall
		if err := json.Unmarshal(args, &call); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
		return d.coreMemoryAppend(call)

	case CoreMemoryReplace:
		var call coreMemoryReplaceCall
		if err := json.Unmarshal(args, &call); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
		return d.coreMemoryReplace(call)

	case ArchivalMemoryInsert:
		var call archivalMemoryInsertCall
		if err := json.Unmarshal(args, &call); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
		return d.archivalMemoryInsert(ctx, call)

	case ArchivalMemorySearch:
		var call archivalMemorySearchCall
		if err := json.Unmarshal(args, &call); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
		return d.archivalMemorySearch(ctx, call)

	case ConversationSearch:
		var call conversationSearchCall
		if err := json.Unmarshal(args, &call); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
		return d.conversationSearch(call)

	default:
		return errorResult(fmt.Sprintf("unknown function: %s", name))
	}
}

type sendMessageCall struct {
	Content string `json:"content"`
}

func (d *Dispatcher) sendMessage(call sendMessageCall) Result {
	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Function %s executed successfully", SendMessage),
		Output: map[string]any{
			"status":  "message_sent",
			"content": call.Content,
		},
	}
}

type coreMemoryAppendCall struct {
	Section string `json:"section"`
	Content string `json:"content"`
}

func (d *Dispatcher) coreMemoryAppend(call coreMemoryAppendCall) Result {
	if err := d.Context.Append(call.Section, call.Content); err != nil {
		return errorResult(fmt.Sprintf("section %q does not exist", call.Section))
	}
	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Appended to %s", call.Section),
		Output:  map[string]any{"section": call.Section},
	}
}

type coreMemoryReplaceCall struct {
	Section    string `json:"section"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
}

func (d *Dispatcher) coreMemoryReplace(call coreMemoryReplaceCall) Result {
	if err := d.Context.Replace(call.Section, call.OldContent, call.NewContent); err != nil {
		return errorResult(fmt.Sprintf("could not find old_content in section %q", call.Section))
	}
	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Replaced content in %s", call.Section),
		Output:  map[string]any{"section": call.Section},
	}
}

type archivalMemoryInsertCall struct {
	Content string `json:"content"`
}

func (d *Dispatcher) archivalMemoryInsert(ctx context.Context, call archivalMemoryInsertCall) Result {
	id, err := d.Archival.Insert(ctx, call.Content, nil)
	if err != nil {
		return storageErrorResult(fmt.Sprintf("error executing %s: %v", ArchivalMemoryInsert, err), err)
	}
	return Result{
		Status:  "success",
		Message: "Content inserted into archival memory",
		Output:  map[string]any{"document_id": id},
	}
}

type archivalMemorySearchCall struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
}

func (d *Dispatcher) archivalMemorySearch(ctx context.Context, call archivalMemorySearchCall) Result {
	offset := call.Page * d.pageSize()
	results, err := d.Archival.Search(ctx, call.Query, d.pageSize(), offset)
	if err != nil {
		return storageErrorResult(fmt.Sprintf("error executing %s: %v", ArchivalMemorySearch, err), err)
	}

	entries := make([]map[string]any, len(results))
	for i, r := range results {
		entries[i] = map[string]any{
			"content":    r.Content,
			"similarity": r.Similarity,
		}
	}

	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Function %s executed successfully", ArchivalMemorySearch),
		Output: map[string]any{
			"query":         call.Query,
			"page":          call.Page,
			"results_count": len(entries),
			"results":       entries,
		},
	}
}

type conversationSearchCall struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
}

func (d *Dispatcher) conversationSearch(call conversationSearchCall) Result {
	offset := call.Page * d.pageSize()
	results, err := d.Recall.Search(call.Query, d.pageSize(), offset)
	if err != nil {
		return storageErrorResult(fmt.Sprintf("error executing %s: %v", ConversationSearch, err), err)
	}

	entries := make([]map[string]any, len(results))
	for i, r := range results {
		entries[i] = map[string]any{
			"role":      r.Role,
			"content":   r.Content,
			"timestamp": r.Timestamp.String(),
		}
	}

	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Function %s executed successfully", ConversationSearch),
		Output: map[string]any{
			"query":         call.Query,
			"page":          call.Page,
			"results_count": len(entries),
			"results":       entries,
		},
	}
}

func (d *Dispatcher) pageSize() int {
	if d.PageSize <= 0 {
		return defaultResultPageSize
	}
	return d.PageSize
}

func errorResult(message string) Result {
	return Result{Status: "error", Message: message}
}

// storageErrorResult builds an error Result from a backing-store failure,
// marking it Fatal when the underlying err is a StorageError so the agent
// loop can escalate rather than fold it back into the conversation for
// the model to retry.
func storageErrorResult(message string, err error) Result {
	return Result{Status: "error", Message: message, Fatal: storageerr.Is(err)}
}

// FormatResult renders a Result into the deterministic textual form folded
// back into conversation history after a tool call.
func FormatResult(name string, r Result) string {
	out := fmt.Sprintf("Function: %s\nStatus: %s\nMessage: %s", name, r.Status, r.Message)
	if r.Output == nil {
		return out
	}
	if m, ok := r.Output.(map[string]any); ok && len(m) == 0 {
		return out
	}
	data, err := json.MarshalIndent(r.Output, "", "  ")
	if err != nil {
		return out
	}
	return out + "\nOutput: " + string(data)
}

// ShouldContinue reports whether the agent heartbeat should keep iterating
// after executing the named tool. Only send_message stops the heartbeat
// and returns control to the user.
func ShouldContinue(name string) bool {
	return name != SendMessage
}
