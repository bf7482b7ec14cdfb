// Package engine turns page state into the next action by asking a
// multimodal model. Providers share the prompt and the decision parser;
// only the wire calls differ.
package engine

import (
	"context"
	"errors"

	"github.com/ken0yuan/auto-ai-web/internal/action"
)

// ErrDecisionParse means the model replied with text no parser could turn
// into an action. The agent records it and asks again rather than aborting.
var ErrDecisionParse = errors.New("cannot parse model decision")

// Request carries everything the model sees for one decision: the task, the
// serialized page structure, an optional screenshot, and the recent history
// of attempted actions with their outcomes.
type Request struct {
	Task       string
	Structure  string
	Screenshot []byte
	History    []string
}

// Decision is a parsed model reply: either the next action, or completion
// with a final message.
type Decision struct {
	Done      bool
	Message   string
	Action    action.Spec
	Rationale string
}

// Engine is one model backend capable of deciding the next action.
type Engine interface {
	// Decide asks the model for the next step. A nil Screenshot degrades
	// to a text-only request.
	Decide(ctx context.Context, req Request) (Decision, error)

	// Name identifies the backend for logging.
	Name() string
}
