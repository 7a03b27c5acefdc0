package tools

import (
	"encoding/json"
	"fmt"

	"github.com/initializ/hmm/llm"
	"github.com/xeipuuv/gojsonschema"
)

// definitions holds the fixed schema for each of the six built-in tools,
// advertised to the model as part of every chat request.
var definitions = []llm.ToolDefinition{
	{Type: "function", Function: llm.ToolFunctionSchema{
		Name:        SendMessage,
		Description: "Send a message to the user. Ends the current heartbeat.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {"content": {"type": "string"}},
			"required": ["content"]
		}`),
	}},
	{Type: "function", Function: llm.ToolFunctionSchema{
		Name:        CoreMemoryAppend,
		Description: "Append content to a core memory section.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"section": {"type": "string"},
				"content": {"type": "string"}
			},
			"required": ["section", "content"]
		}`),
	}},
	{Type: "function", Function: llm.ToolFunctionSchema{
		Name:        CoreMemoryReplace,
		Description: "Replace the first occurrence of old_content with new_content in a core memory section.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"section": {"type": "string"},
				"old_content": {"type": "string"},
				"new_content": {"type": "string"}
			},
			"required": ["section", "old_content", "new_content"]
		}`),
	}},
	{Type: "function", Function: llm.ToolFunctionSchema{
		Name:        ArchivalMemoryInsert,
		Description: "Insert content into long-term archival memory.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {"content": {"type": "string"}},
			"required": ["content"]
		}`),
	}},
	{Type: "function", Function: llm.ToolFunctionSchema{
		Name:        ArchivalMemorySearch,
		Description: "Search archival memory by semantic similarity.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"page": {"type": "integer", "minimum": 0}
			},
			"required": ["query"]
		}`),
	}},
	{Type: "function", Function: llm.ToolFunctionSchema{
		Name:        ConversationSearch,
		Description: "Search prior conversation history by substring match.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"page": {"type": "integer", "minimum": 0}
			},
			"required": ["query"]
		}`),
	}},
}

func rawSchema(s string) json.RawMessage {
	return json.RawMessage(s)
}

// ToolDefinitions returns the fixed tool table to advertise to the model.
func ToolDefinitions() []llm.ToolDefinition {
	return definitions
}

// ValidateArguments checks raw arguments against the named tool's declared
// JSON schema before dispatch, so malformed calls are rejected with a
// clear message rather than failing deep inside a handler.
func ValidateArguments(name string, args json.RawMessage) error {
	var schema json.RawMessage
	for _, d := range definitions {
		if d.Function.Name == name {
			schema = d.Function.Parameters
			break
		}
	}
	if schema == nil {
		return fmt.Errorf("unknown function: %s", name)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validating arguments for %s: %w", name, err)
	}
	if !result.Valid() {
		return fmt.Errorf("invalid arguments for %s: %v", name, result.Errors())
	}
	return nil
}
