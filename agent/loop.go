// Package agent implements the heartbeat state machine that drives one
// user turn through repeated LLM calls and tool dispatches until the
// model replies with send_message, stops without calling a tool, exhausts
// its iteration budget, or errors out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/initializ/hmm/llm"
	"github.com/initializ/hmm/queue"
	"github.com/initializ/hmm/tools"
	"github.com/initializ/hmm/workingcontext"
)

// Status values for a completed turn.
const (
	StatusSuccess       = "success"
	StatusNoMessage     = "no_message"
	StatusMaxIterations = "max_iterations"
	StatusError         = "error"
)

const defaultMaxIterations = 10

// Hooks are optional observability callbacks fired at each stage of a
// turn. Any nil hook is simply skipped.
type Hooks struct {
	BeforeLLMCall  func(ctx context.Context, req *llm.ChatRequest)
	AfterLLMCall   func(ctx context.Context, resp *llm.ChatResponse)
	BeforeToolExec func(ctx context.Context, name string, args json.RawMessage)
	AfterToolExec  func(ctx context.Context, name string, result tools.Result)
	OnError        func(ctx context.Context, err error)
}

// Config wires an Agent to its memory subsystems and LLM client.
type Config struct {
	Client        llm.Client
	Context       *workingcontext.Context
	Queue         *queue.Manager
	Dispatcher    *tools.Dispatcher
	Logger        Logger
	Hooks         Hooks
	MaxIterations int
}

// Outcome is the terminal result of a single call to Step.
type Outcome struct {
	Status     string
	Message    string
	Thought    string
	Iterations int
}

// Agent drives the heartbeat loop for one configured session.
type Agent struct {
	cfg Config
}

// New creates an Agent, defaulting MaxIterations and Logger when unset.
func New(cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Agent{cfg: cfg}
}

// Step runs one user turn to completion: it appends userInput to the
// queue, then repeatedly calls the LLM and dispatches tool calls until
// send_message is called, the model finishes with prose and no tool call
// (no_message, the prose returned as Thought), the iteration budget is
// exhausted, or an unrecoverable error occurs.
func (a *Agent) Step(ctx context.Context, userInput string) (Outcome, error) {
	if err := a.appendAndRecord(llm.RoleUser, userInput, ""); err != nil {
		return Outcome{Status: StatusError}, fmt.Errorf("recording user message: %w", err)
	}

	for i := 0; i < a.cfg.MaxIterations; i++ {
		req := a.buildRequest()
		a.fireBeforeLLM(ctx, req)

		resp, err := a.cfg.Client.Chat(ctx, req)
		if err != nil {
			a.fireError(ctx, err)
			if recordErr := a.appendAndRecord(llm.RoleSystem, fmt.Sprintf("system error: calling LLM: %v", err), ""); recordErr != nil {
				a.cfg.Logger.Warn("failed recording llm error message", map[string]any{"error": recordErr.Error()})
			}
			return Outcome{Status: StatusError, Iterations: i + 1}, fmt.Errorf("calling LLM: %w", err)
		}
		a.fireAfterLLM(ctx, resp)

		name, args, ok := extractToolCall(resp)
		if !ok {
			// Prose without a tool call is inner monologue: record it, then
			// end the turn with no_message when the model has finished, or
			// compose and call the model again otherwise.
			thought := resp.Message.Content
			if thought != "" {
				if err := a.appendAndRecord(llm.RoleAssistant, thought, ""); err != nil {
					a.cfg.Logger.Warn("failed recording assistant message", map[string]any{"error": err.Error()})
				}
			}
			if resp.FinishReason == "stop" {
				return Outcome{Status: StatusNoMessage, Thought: thought, Iterations: i + 1}, nil
			}
			continue
		}

		if err := a.appendToolCallMessage(resp.Message); err != nil {
			a.cfg.Logger.Warn("failed recording assistant tool call", map[string]any{"error": err.Error()})
		}

		a.fireBeforeTool(ctx, name, args)
		result := a.cfg.Dispatcher.Execute(ctx, name, args)
		a.fireAfterTool(ctx, name, result)

		formatted := tools.FormatResult(name, result)
		if err := a.appendToolResultMessage(name, formatted); err != nil {
			a.cfg.Logger.Warn("failed recording tool result", map[string]any{"error": err.Error()})
		}

		if result.Fatal {
			// StorageError: terminate the turn instead of looping back
			// for the model to retry, per the propagation policy that
			// only ContractViolation is non-fatal.
			toolErr := fmt.Errorf("executing %s: %s", name, result.Message)
			a.fireError(ctx, toolErr)
			return Outcome{Status: StatusError, Iterations: i + 1}, toolErr
		}

		if !tools.ShouldContinue(name) {
			message := sendMessageContent(result)
			return Outcome{Status: StatusSuccess, Message: message, Iterations: i + 1}, nil
		}
	}

	return Outcome{Status: StatusMaxIterations, Iterations: a.cfg.MaxIterations}, nil
}

func (a *Agent) buildRequest() *llm.ChatRequest {
	system := composeSystemPrompt(a.cfg.Context.Render())
	messages := make([]llm.ChatMessage, 0, len(a.cfg.Queue.Messages())+2)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: system})
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: a.cfg.Queue.Summary()})
	messages = append(messages, a.cfg.Queue.Messages()...)

	return &llm.ChatRequest{
		Model:    a.cfg.Client.ModelID(),
		Messages: messages,
		Tools:    tools.ToolDefinitions(),
	}
}

// appendAndRecord, appendToolCallMessage, and appendToolResultMessage all
// push into the queue only: durable recall persistence happens exclusively
// as a side effect of C5 eviction (queue.Manager.evictLocked), per the
// ownership model where C5 — not the agent — holds the handle to C2.

func (a *Agent) appendAndRecord(role llm.Role, content, name string) error {
	msg := llm.ChatMessage{Role: role, Content: content, Name: name}
	return a.cfg.Queue.Append(context.Background(), msg)
}

func (a *Agent) appendToolCallMessage(msg llm.ChatMessage) error {
	return a.cfg.Queue.Append(context.Background(), msg)
}

func (a *Agent) appendToolResultMessage(name, content string) error {
	msg := llm.ChatMessage{Role: llm.RoleTool, Content: content, Name: name}
	return a.cfg.Queue.Append(context.Background(), msg)
}

// extractToolCall pulls the first tool call out of a response, handling
// both the modern tool_calls array and the legacy single function_call
// field some providers still emit.
func extractToolCall(resp *llm.ChatResponse) (name string, args json.RawMessage, ok bool) {
	if len(resp.Message.ToolCalls) > 0 {
		tc := resp.Message.ToolCalls[0]
		return tc.Function.Name, json.RawMessage(tc.Function.Arguments), true
	}
	if resp.LegacyFunctionCall != nil {
		return resp.LegacyFunctionCall.Name, json.RawMessage(resp.LegacyFunctionCall.Arguments), true
	}
	return "", nil, false
}

func sendMessageContent(r tools.Result) string {
	m, ok := r.Output.(map[string]any)
	if !ok {
		return r.Message
	}
	content, _ := m["content"].(string)
	return content
}

func (a *Agent) fireBeforeLLM(ctx context.Context, req *llm.ChatRequest) {
	if a.cfg.Hooks.BeforeLLMCall != nil {
		a.cfg.Hooks.BeforeLLMCall(ctx, req)
	}
}

func (a *Agent) fireAfterLLM(ctx context.Context, resp *llm.ChatResponse) {
	if a.cfg.Hooks.AfterLLMCall != nil {
		a.cfg.Hooks.AfterLLMCall(ctx, resp)
	}
}

func (a *Agent) fireBeforeTool(ctx context.Context, name string, args json.RawMessage) {
	if a.cfg.Hooks.BeforeToolExec != nil {
		a.cfg.Hooks.BeforeToolExec(ctx, name, args)
	}
}

func (a *Agent) fireAfterTool(ctx context.Context, name string, result tools.Result) {
	if a.cfg.Hooks.AfterToolExec != nil {
		a.cfg.Hooks.AfterToolExec(ctx, name, result)
	}
}

func (a *Agent) fireError(ctx context.Context, err error) {
	a.cfg.Logger.Error("llm call failed", map[string]any{"error": err.Error()})
	if a.cfg.Hooks.OnError != nil {
		a.cfg.Hooks.OnError(ctx, err)
	}
}

// Reset clears the queue back to its empty state, leaving working context
// and durable stores untouched. Matches the reference CLI's /reset
// command (which resets short-term memory, not recall/archival history).
func (a *Agent) Reset() {
	a.cfg.Queue.Reset()
}

// QueueStatus summarizes current queue pressure for display (the /status
// command in the CLI).
type QueueStatus struct {
	QueueLength int
	Summary     string
}

func (a *Agent) QueueStatus() QueueStatus {
	return QueueStatus{
		QueueLength: len(a.cfg.Queue.Messages()),
		Summary:     a.cfg.Queue.Summary(),
	}
}

// CoreMemory returns a snapshot of all working context sections (the
// /memory command in the CLI).
func (a *Agent) CoreMemory() map[string]string {
	return a.cfg.Context.All()
}
