// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"fmt"
	"sync"

	"rina.dev/ipcpd/internal/errors"
)

// Policy is a pluggable algorithm implementation installed under a name.
type Policy interface {
	Name() string
}

// Reconfigurable is implemented by policies (DFT's replication policy, in
// this daemon) that need a callback after being swapped in.
type Reconfigurable interface {
	Reconfigure()
}

// Builder constructs a Policy by name.
type Builder func() Policy

// Registry is the two-level component -> (policy-name -> builder) map,
// plus the live policy selection and declared parameters per component.
type Registry struct {
	mu sync.Mutex

	builders map[string]map[string]Builder
	current  map[string]Policy
	params   map[string]map[string]ParamValue
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]map[string]Builder),
		current:  make(map[string]Policy),
		params:   make(map[string]map[string]ParamValue),
	}
}

// Register declares a policy implementation available for component under
// name, via builder.
func (r *Registry) Register(component, name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builders[component] == nil {
		r.builders[component] = make(map[string]Builder)
	}
	r.builders[component][name] = builder
}

// SetDefault installs the initial policy for component without going
// through PolicyMod's no-op/Reconfigure bookkeeping (used at startup).
func (r *Registry) SetDefault(component string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[component] = p
}

// Current returns the live policy for component, or nil if none was set.
func (r *Registry) Current(component string) Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[component]
}

// Names returns every policy name registered for component, in no
// particular order.
func (r *Registry) Names(component string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.builders[component]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byName))
	for name := range byName {
		out = append(out, name)
	}
	return out
}

// ParamNames returns every declared parameter name for component.
func (r *Registry) ParamNames(component string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.params[component]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byName))
	for name := range byName {
		out = append(out, name)
	}
	return out
}

// PolicyMod swaps in the named policy for component. A no-op (returns nil
// without rebuilding) if the requested name is already current. Unknown
// component/name is a config error. If the resulting policy is
// Reconfigurable, Reconfigure is called after the swap.
func (r *Registry) PolicyMod(component, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.current[component]; cur != nil && cur.Name() == name {
		return nil
	}

	byName, ok := r.builders[component]
	if !ok {
		return errors.Errorf(errors.KindConfig, "unknown policy component %q", component)
	}
	builder, ok := byName[name]
	if !ok {
		return errors.Errorf(errors.KindConfig, "component %q has no policy named %q", component, name)
	}

	p := builder()
	r.current[component] = p
	if rc, ok := p.(Reconfigurable); ok {
		rc.Reconfigure()
	}
	return nil
}

// DeclareParam registers name's declared type/range for component. Must be
// called at init time before any PolicyParamMod or Param call for that
// key.
func (r *Registry) DeclareParam(component, name string, v ParamValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params[component] == nil {
		r.params[component] = make(map[string]ParamValue)
	}
	r.params[component][name] = v
}

// Param reads a declared parameter. Panics on an unknown component/name:
// callers must declare parameters at init, per spec.md §4.10.
func (r *Registry) Param(component, name string) ParamValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.params[component]
	if !ok {
		panic(fmt.Sprintf("policy: unknown component %q", component))
	}
	v, ok := byName[name]
	if !ok {
		panic(fmt.Sprintf("policy: unknown parameter %q for component %q", name, component))
	}
	return v
}

// PolicyParamMod parses value according to the parameter's declared type
// (range-checked for ints, exact "true"/"false" for bools) and commits it.
// On a validation error the parameter is left unchanged.
func (r *Registry) PolicyParamMod(component, name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.params[component]
	if !ok {
		return errors.Errorf(errors.KindConfig, "unknown policy component %q", component)
	}
	cur, ok := byName[name]
	if !ok {
		return errors.Errorf(errors.KindConfig, "component %q has no parameter %q", component, name)
	}

	next, err := cur.parse(value)
	if err != nil {
		return err
	}
	byName[name] = next
	return nil
}
