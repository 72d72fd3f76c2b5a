// Package action defines the gateway's action registry, the dispatcher and
// the uniform result envelope every call returns through.
package action

import (
	"context"
	"fmt"
)

// FieldType is the declared JSON type of an action input field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Field describes one input of an action: its name, declared type and
// whether the dispatcher must reject calls that omit it.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Args is the loosely-typed argument bundle an action is invoked with. The
// dispatcher validates types against the descriptor before the handler runs,
// so the accessors can stay lenient.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Object(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

func (a Args) Array(name string) []any {
	v, _ := a[name].([]any)
	return v
}

// Handler implements one action. A returned error is classified into the
// envelope by the dispatcher; handlers never write the error variant
// themselves.
type Handler func(ctx context.Context, args Args) (*Result, error)

// Descriptor is one registered action. Immutable after registration.
type Descriptor struct {
	Name        string
	Description string
	Fields      []Field
	Handler     Handler
}

// Registry is the fixed action-name to descriptor mapping. It is populated
// once at process start and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds a descriptor. Registration problems are programming errors,
// caught at startup, so they panic rather than return.
func (r *Registry) Register(d Descriptor) {
	if d.Name == "" {
		panic("action: descriptor without a name")
	}
	if d.Handler == nil {
		panic(fmt.Sprintf("action: %q registered without a handler", d.Name))
	}
	if _, dup := r.byName[d.Name]; dup {
		panic(fmt.Sprintf("action: %q registered twice", d.Name))
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// List returns all descriptors in registration order, for capability
// advertisement to callers.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
