// Package ingest bulk-loads historical conversations from JSON files into
// the recall and archival stores, supporting several input shapes seen in
// exported chat transcripts.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/initializ/hmm/archival"
	"github.com/initializ/hmm/recall"
)

// Message is one parsed conversation turn.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// RecallFactory opens (or creates) a recall store rooted at path.
type RecallFactory func(path string) (recall.Store, error)

// ArchivalFactory opens (or creates) an archival store rooted at path.
type ArchivalFactory func(path string) (archival.Store, error)

// Stores bundles the factories needed to materialize isolated stores for
// nested (multi-conversation) ingestion.
type Stores struct {
	NewRecall   RecallFactory
	NewArchival ArchivalFactory
}

// Report summarizes what an ingestion run did.
type Report struct {
	Conversations int
	Sessions      int
	Messages      int
}

// IngestFile reads jsonPath and loads its conversations into stores rooted
// at dbPath (recall) and archivalPath (archival). Nested multi-conversation
// inputs get an isolated recall+archival store per conversation, created
// under a subdirectory of filepath.Dir(dbPath) named after the
// conversation ID.
func IngestFile(jsonPath, dbPath, archivalPath string, stores Stores) (Report, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Report{}, fmt.Errorf("reading ingestion file: %w", err)
	}

	conversations, err := parseJSONFormat(data)
	if err != nil {
		return Report{}, fmt.Errorf("parsing ingestion file: %w", err)
	}

	var report Report
	parentDir := filepath.Dir(dbPath)

	for convID, sessions := range conversations {
		recallPath, archivalCollection := dbPath, archivalPath
		recallDB, err := stores.NewRecall(recallPath)
		archivalDB, archErr := stores.NewArchival(archivalCollection)

		if convID != "" {
			subdir, serr := safeSubdir(parentDir, convID)
			if serr != nil {
				return report, fmt.Errorf("resolving conversation directory: %w", serr)
			}
			if err := os.MkdirAll(subdir, 0o755); err != nil {
				return report, fmt.Errorf("creating conversation directory: %w", err)
			}
			recallDB, err = stores.NewRecall(filepath.Join(subdir, "recall.db"))
			archivalDB, archErr = stores.NewArchival(filepath.Join(subdir, "archival"))
		}

		if err != nil {
			return report, fmt.Errorf("opening recall store for conversation %q: %w", convID, err)
		}
		if archErr != nil {
			return report, fmt.Errorf("opening archival store for conversation %q: %w", convID, archErr)
		}

		report.Conversations++
		for _, se := range sessions {
			if err := ingestSession(recallDB, archivalDB, se.sessionID, se.messages); err != nil {
				return report, fmt.Errorf("ingesting session %q: %w", se.sessionID, err)
			}
			report.Sessions++
			report.Messages += len(se.messages)
		}
	}

	return report, nil
}

func ingestSession(r recall.Store, a archival.Store, sessionID string, messages []Message) error {
	var transcript string
	for _, m := range messages {
		if _, err := r.Append(m.Role, m.Content, map[string]any{"session_id": sessionID}); err != nil {
			return fmt.Errorf("appending to recall: %w", err)
		}
		transcript += m.Role + ": " + m.Content + "\n"
	}
	if transcript != "" {
		if _, err := a.Insert(context.Background(), transcript, map[string]any{"session_id": sessionID}); err != nil {
			return fmt.Errorf("inserting transcript into archival memory: %w", err)
		}
	}
	return nil
}

// parseJSONFormat detects and parses one of four supported shapes,
// returning a conv_id -> list of (session_id, messages) structure. A
// conv_id of "" means "no conversation-level isolation" (shapes 1 and 2).
func parseJSONFormat(data []byte) (map[string][]sessionEntry, error) {
	// Shape 1: flat list of messages.
	var flat []json.RawMessage
	if err := json.Unmarshal(data, &flat); err == nil {
		messages, err := parseMessages(flat)
		if err != nil {
			return nil, err
		}
		return map[string][]sessionEntry{
			"": {{sessionID: "default", messages: messages}},
		}, nil
	}

	// Top level is an object: could be shape 2, 3, or 4.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("unrecognized ingestion JSON shape: %w", err)
	}

	// Determine whether the object's values look like message lists
	// (shape 2) or nested conversation objects (shape 3/4).
	isFlatMapping := true
	for _, v := range top {
		var list []json.RawMessage
		if json.Unmarshal(v, &list) != nil {
			isFlatMapping = false
			break
		}
	}

	if isFlatMapping {
		var entries []sessionEntry
		for sessionID, v := range top {
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, err
			}
			messages, err := parseMessages(list)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sessionEntry{sessionID: sessionID, messages: messages})
		}
		return map[string][]sessionEntry{"": entries}, nil
	}

	// Shape 3 or 4: per-conversation object.
	result := make(map[string][]sessionEntry, len(top))
	for convID, v := range top {
		var convObj map[string]json.RawMessage
		if err := json.Unmarshal(v, &convObj); err != nil {
			return nil, fmt.Errorf("conversation %q is not an object: %w", convID, err)
		}

		sessionsRaw := convObj
		if inner, ok := convObj["conversation"]; ok {
			// Shape 3: {conv_id: {"conversation": {session_id: [...]}}}
			if err := json.Unmarshal(inner, &sessionsRaw); err != nil {
				return nil, fmt.Errorf("conversation %q has invalid \"conversation\" field: %w", convID, err)
			}
		}

		var entries []sessionEntry
		for sessionID, msgsRaw := range sessionsRaw {
			var list []json.RawMessage
			if err := json.Unmarshal(msgsRaw, &list); err != nil {
				return nil, fmt.Errorf("session %q in conversation %q is not a list: %w", sessionID, convID, err)
			}
			messages, err := parseMessages(list)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sessionEntry{sessionID: sessionID, messages: messages})
		}
		result[convID] = entries
	}
	return result, nil
}

type sessionEntry struct {
	sessionID string
	messages  []Message
}

// parseMessages converts a raw JSON message list into Messages. Each
// element is either an object with role/content(/timestamp) fields, or a
// bare string; bare strings alternate role starting with "user".
func parseMessages(raw []json.RawMessage) ([]Message, error) {
	messages := make([]Message, 0, len(raw))
	for i, item := range raw {
		var asString string
		if err := json.Unmarshal(item, &asString); err == nil {
			role := "user"
			if i%2 == 1 {
				role = "assistant"
			}
			messages = append(messages, Message{Role: role, Content: asString, Timestamp: time.Time{}})
			continue
		}

		var obj struct {
			Role      string      `json:"role"`
			Content   string      `json:"content"`
			Timestamp interface{} `json:"timestamp"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("message %d is neither a string nor an object: %w", i, err)
		}
		if obj.Role == "" {
			obj.Role = "user"
		}
		messages = append(messages, Message{
			Role:      obj.Role,
			Content:   obj.Content,
			Timestamp: parseTimestamp(obj.Timestamp),
		})
	}
	return messages, nil
}

// parseTimestamp accepts either an RFC3339 string or a Unix epoch number,
// returning the zero time if it cannot be parsed.
func parseTimestamp(v interface{}) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
		layouts := []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	case float64:
		return time.Unix(int64(t), 0).UTC()
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.Unix(n, 0).UTC()
		}
	}
	return time.Time{}
}
