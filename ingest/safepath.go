package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// safeSubdir resolves a conversation-ID-derived directory name against
// parentDir and validates the result stays within parentDir. Conversation
// IDs originate from untrusted ingestion input, so this guards against
// path traversal the same way a file store would guard relative file
// paths.
func safeSubdir(parentDir, convID string) (string, error) {
	cleaned := filepath.Clean(convID)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute conversation id not allowed: %s", convID)
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("path traversal not allowed in conversation id: %s", convID)
	}

	joined := filepath.Join(parentDir, cleaned)

	absParent, err := filepath.Abs(parentDir)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absJoined, absParent+string(filepath.Separator)) && absJoined != absParent {
		return "", fmt.Errorf("conversation id escapes parent directory: %s", convID)
	}

	return joined, nil
}
