package template

import (
	"sync/atomic"

	"github.com/grantthrive/pulse/model"
)

// snapshot is an immutable collection of templates indexed by ID.
type snapshot struct {
	templates map[string]model.WorkflowTemplate
}

// Registry is a read-optimized, thread-safe store of workflow templates.
// It uses atomic pointer swap for lock-free concurrent reads. Templates are
// immutable once registered; Replace swaps the whole set.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry seeded with the built-in templates plus any
// extra templates supplied by the host.
func NewRegistry(extra ...model.WorkflowTemplate) *Registry {
	r := &Registry{}
	r.Replace(append(Builtins(), extra...))
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given templates. Later entries win on ID collision, so host
// templates may override built-ins.
func (r *Registry) Replace(templates []model.WorkflowTemplate) {
	s := &snapshot{templates: make(map[string]model.WorkflowTemplate, len(templates))}
	for _, t := range templates {
		s.templates[t.ID] = t
	}
	r.snap.Store(s)
}

// Register adds one template, replacing any existing template with the same
// ID. Registration builds a fresh snapshot so concurrent readers are never
// blocked.
func (r *Registry) Register(t model.WorkflowTemplate) {
	s := r.current()
	next := &snapshot{templates: make(map[string]model.WorkflowTemplate, len(s.templates)+1)}
	for k, v := range s.templates {
		next.templates[k] = v
	}
	next.templates[t.ID] = t
	r.snap.Store(next)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Resolve returns the template with the given ID. The returned template is a
// deep copy; callers cannot mutate registered stage lists.
func (r *Registry) Resolve(templateID string) (model.WorkflowTemplate, bool) {
	t, ok := r.current().templates[templateID]
	if !ok {
		return model.WorkflowTemplate{}, false
	}
	return cloneTemplate(t), true
}

// All returns every registered template.
func (r *Registry) All() []model.WorkflowTemplate {
	s := r.current()
	out := make([]model.WorkflowTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, cloneTemplate(t))
	}
	return out
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.current().templates)
}

func cloneTemplate(t model.WorkflowTemplate) model.WorkflowTemplate {
	out := t
	out.Stages = make([]model.StageDefinition, len(t.Stages))
	for i, s := range t.Stages {
		cs := s
		if s.RequiredFields != nil {
			cs.RequiredFields = append([]string(nil), s.RequiredFields...)
		}
		if s.OptionalFields != nil {
			cs.OptionalFields = append([]string(nil), s.OptionalFields...)
		}
		out.Stages[i] = cs
	}
	return out
}
