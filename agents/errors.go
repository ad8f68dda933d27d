package agents

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when a trigger targets a model id that is not
// in the configured, funded fleet.
var ErrAgentNotFound = errors.New("agent not found")

// GuardrailKind identifies which ceiling a run hit.
type GuardrailKind string

const (
	GuardrailToolCalls GuardrailKind = "tool_calls"
	GuardrailTrades    GuardrailKind = "trades"
)

// GuardrailError is fatal to the run that raised it and to that run only.
// Sibling agents in the same dispatch are unaffected.
type GuardrailError struct {
	Kind    GuardrailKind
	ModelID string
	Limit   int
	Count   int
}

func (e *GuardrailError) Error() string {
	switch e.Kind {
	case GuardrailTrades:
		return fmt.Sprintf("trade limit exceeded for %s: %d trades placed, limit %d", e.ModelID, e.Count, e.Limit)
	default:
		return fmt.Sprintf("tool call limit exceeded for %s: %d calls, limit %d", e.ModelID, e.Count, e.Limit)
	}
}

// AsGuardrailError unwraps err into a GuardrailError if it is one.
func AsGuardrailError(err error) (*GuardrailError, bool) {
	var ge *GuardrailError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
