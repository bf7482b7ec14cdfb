package action

import (
	"fmt"
	"sort"
	"sync"
)

// ParamSchema declares what a registered action needs before dispatch.
type ParamSchema struct {
	RequiresTarget bool
	RequiresValue  bool
	Description    string
}

// Registry maps action names to their parameter schemas. Validation runs
// before any browser call, so a malformed request never half-executes.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ParamSchema
}

// NewRegistry creates a registry pre-populated with the built-in actions.
func NewRegistry() *Registry {
	r := &Registry{actions: make(map[string]ParamSchema)}
	r.Register("click", ParamSchema{RequiresTarget: true, Description: "click an element"})
	r.Register("input", ParamSchema{RequiresTarget: true, RequiresValue: true, Description: "clear a field and type into it"})
	r.Register("select_option", ParamSchema{RequiresTarget: true, RequiresValue: true, Description: "choose a dropdown option by its label"})
	r.Register("scroll", ParamSchema{Description: "scroll the page, value is signed pixels or up/down"})
	r.Register("navigate", ParamSchema{RequiresValue: true, Description: "load a URL"})
	r.Register("press", ParamSchema{RequiresValue: true, Description: "press a key, optionally on a focused element"})
	r.Register("wait", ParamSchema{Description: "pause, value is seconds"})
	r.Register("done", ParamSchema{Description: "finish the task, value is the final answer"})
	return r
}

// Register adds or replaces an action schema.
func (r *Registry) Register(name string, schema ParamSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = schema
}

// Get returns the schema for an action name.
func (r *Registry) Get(name string) (ParamSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.actions[name]
	return s, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a spec against its schema without touching the page.
func (r *Registry) Validate(spec Spec) error {
	schema, ok := r.Get(spec.Name)
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrValidation, spec.Name)
	}
	if schema.RequiresTarget && spec.Target.IsZero() {
		return fmt.Errorf("%w: %s requires a target", ErrValidation, spec.Name)
	}
	if schema.RequiresValue && spec.Value == "" {
		return fmt.Errorf("%w: %s requires a value", ErrValidation, spec.Name)
	}
	return nil
}
