package proto

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks a decoded params value against a tool's declared
// constraints (e.g. "temperature in [0, 2]", "top_p in [0, 1]", parseable
// ids) before the dispatcher invokes a handler (spec.md §4.5 step 1). It is
// kept separate from (de)serialization: the wire codec already produced a
// typed Go value, so validation here is semantic, not structural.
type Validator func(v any) error

// Registry maps a ToolName to its declared Timing and Validator. The
// dispatcher (pkg/broker) consults it purely by name, never by switching
// on concrete request types, mirroring teacher's SpecLookup/ToolSpec
// indirection in runtime/toolregistry.
type Registry struct {
	mu         sync.RWMutex
	timings    map[ToolName]Timing
	validators map[ToolName]Validator
	schemas    map[ToolName]*jsonschema.Schema
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		timings:    make(map[ToolName]Timing),
		validators: make(map[ToolName]Validator),
		schemas:    make(map[ToolName]*jsonschema.Schema),
	}
}

// Register associates a tool name with its timing class and an optional
// semantic validator. Calling Register twice for the same name overwrites
// the prior registration (used by tests to swap in stricter validators).
func (r *Registry) Register(name ToolName, timing Timing, validate Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings[name] = timing
	if validate != nil {
		r.validators[name] = validate
	}
}

// RegisterSchema attaches a compiled JSON Schema used to validate the raw
// params document (as decoded from the Json debugging content-type) before
// dispatch. Compilation failures are returned immediately rather than
// deferred to first use.
func (r *Registry) RegisterSchema(name ToolName, schemaJSON string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(string(name)+".json", mustUnmarshalSchema(schemaJSON)); err != nil {
		return fmt.Errorf("proto: add schema resource for %q: %w", name, err)
	}
	sch, err := compiler.Compile(string(name) + ".json")
	if err != nil {
		return fmt.Errorf("proto: compile schema for %q: %w", name, err)
	}
	r.mu.Lock()
	r.schemas[name] = sch
	r.mu.Unlock()
	return nil
}

// Timing looks up the declared timing class for name.
func (r *Registry) Timing(name ToolName) (Timing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timings[name]
	return t, ok
}

// paramsUnwrapper is implemented by Typed[P] so Validate can recover the
// concrete params struct a Validator expects even though the dispatcher
// calls Validate with the generic Request interface, not the bare struct.
type paramsUnwrapper interface {
	RawParams() any
}

// Validate runs both the semantic Validator (if registered) and the
// compiled JSON Schema (if registered) for name against v / raw. v may be
// either the bare params struct directly (as tests conveniently do) or
// anything implementing RawParams (every Typed[P] request the dispatcher
// actually passes); either way the registered Validator sees the bare
// struct it was written against.
func (r *Registry) Validate(name ToolName, v any, raw map[string]any) error {
	r.mu.RLock()
	validate, hasValidate := r.validators[name]
	sch, hasSchema := r.schemas[name]
	r.mu.RUnlock()

	target := v
	if u, ok := v.(paramsUnwrapper); ok {
		target = u.RawParams()
	}

	if hasValidate {
		if err := validate(target); err != nil {
			return &ToolError{Kind: ErrValidation, Message: err.Error()}
		}
	}
	if hasSchema && raw != nil {
		if err := sch.Validate(raw); err != nil {
			return &ToolError{Kind: ErrValidation, Message: err.Error()}
		}
	}
	return nil
}

func mustUnmarshalSchema(schemaJSON string) any {
	v, err := jsonschema.UnmarshalJSON(stringsReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("proto: invalid schema literal: %v", err))
	}
	return v
}
