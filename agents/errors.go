package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linesmerrill/courtroom-api/models"
)

// ErrUnknownConversationType is returned when no conversation type has the requested name
var ErrUnknownConversationType = errors.New("unknown conversation type")

// IncompleteRoleSetError is returned when a conversation type's required roles are not
// all bound. Nothing is created when it is returned.
type IncompleteRoleSetError struct {
	ConversationType string
	Missing          []models.Role
}

func (e *IncompleteRoleSetError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		missing[i] = string(r)
	}
	return fmt.Sprintf("incomplete role set for %s: missing %s", e.ConversationType, strings.Join(missing, ", "))
}

// InvalidBindingError reports a role binding that can never be valid (unknown, duplicated
// or not part of the conversation type)
type InvalidBindingError struct {
	Role   models.Role
	Reason string
}

func (e *InvalidBindingError) Error() string {
	return fmt.Sprintf("invalid binding for role %q: %s", e.Role, e.Reason)
}
