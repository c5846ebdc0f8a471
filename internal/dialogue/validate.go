package dialogue

import (
	"fmt"
	"strings"
)

// Validate checks a turn before any lookup or backend call. An empty history
// is allowed.
func Validate(req TurnRequest) error {
	if strings.TrimSpace(req.UniqueID) == "" {
		return &ValidationError{Field: "unique_id", Reason: "is required"}
	}
	for i, m := range req.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		default:
			return &ValidationError{
				Field:  fmt.Sprintf("messages[%d].role", i),
				Reason: fmt.Sprintf("must be %q or %q, got %q", RoleUser, RoleAssistant, m.Role),
			}
		}
		if strings.TrimSpace(m.Content) == "" {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Reason: "must not be empty"}
		}
	}
	return nil
}
