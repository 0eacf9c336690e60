package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Role is the normalized display role of a chat message. The backend uses
// several role vocabularies depending on the model provider; rendering
// collaborators only ever see the normalized set.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
	RoleError Role = "error" // display-only, injected on failed exchanges
)

// Message represents a single message in the active conversation's
// transcript.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a transcript message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NormalizeRole maps backend message roles onto the display roles.
// Unrecognized roles pass through unchanged.
func NormalizeRole(role string) Role {
	switch role {
	case "user", "human":
		return RoleHuman
	case "assistant", "model", "ai":
		return RoleAI
	default:
		return Role(role)
	}
}

// personLinkPattern matches markdown links pointing at person detail pages,
// e.g. [Ada Lovelace](/person/I0042).
var personLinkPattern = regexp.MustCompile(`\[[^\]]+\]\(/person/([^)/\s]+)\)`)

// ExtractPersonIDs returns the person ids referenced by markdown links in
// content, deduplicated, in order of first appearance.
func ExtractPersonIDs(content string) []string {
	matches := personLinkPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1]
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
