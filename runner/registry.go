package runner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/infermesh/infermesh/core"
)

// Factory constructs a fresh, unloaded Runner instance.
type Factory func() Runner

// Registration describes a known runner type: a unique name, a factory that
// produces instances, the declared capability set and a priority used for
// default-selection tie-breaks (higher wins).
type Registration struct {
	Name         string
	Factory      Factory
	Capabilities []core.Capability
	Priority     int

	// seq records insertion order so equal-priority candidates resolve
	// deterministically.
	seq int
}

// DeclaresCapability reports whether the registration declares c.
func (r *Registration) DeclaresCapability(c core.Capability) bool {
	for _, rc := range r.Capabilities {
		if rc == c {
			return true
		}
	}
	return false
}

// Registry is the catalog mapping registration names to runner factories.
// Reads vastly outnumber writes (registration happens at startup, removal at
// teardown), so lookups share an RWMutex read lock.
//
// The registry holds no live instances. Unregister and Clear only drop
// catalog entries; unloading any live instance is the engine's job and is
// performed before removal.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
	nextSeq int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Registration)}
}

// Register inserts a registration by name. A duplicate name is rejected; use
// Replace for explicit replace semantics. The registration is validated
// eagerly: the name and factory must be set, the capability set must be
// non-empty and valid, and a probe instance built from the factory must not
// declare capabilities outside the registered set.
func (r *Registry) Register(reg *Registration) error {
	if err := validateRegistration(reg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[reg.Name]; exists {
		return fmt.Errorf("runner %q already registered", reg.Name)
	}

	reg.seq = r.nextSeq
	r.nextSeq++
	r.entries[reg.Name] = reg

	return nil
}

// Replace inserts a registration by name, replacing any existing entry with
// the same name. Replacing does not unload a live instance built from the old
// registration; callers must do that first via the engine.
func (r *Registry) Replace(reg *Registration) error {
	if err := validateRegistration(reg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.entries[reg.Name]; exists {
		reg.seq = old.seq
	} else {
		reg.seq = r.nextSeq
		r.nextSeq++
	}
	r.entries[reg.Name] = reg

	return nil
}

// FindByName returns the registration for name.
func (r *Registry) FindByName(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// FindByCapability returns every registration declaring c, ordered by
// descending priority with registration order breaking ties. The ordering is
// deterministic given the same registration set.
func (r *Registry) FindByCapability(c core.Capability) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Registration
	for _, reg := range r.entries {
		if reg.DeclaresCapability(c) {
			matches = append(matches, reg)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].seq < matches[j].seq
	})

	return matches
}

// Unregister removes the named registration. It does not unload any live
// instance built from it.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Registration)
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]*Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })

	names := make([]string, len(regs))
	for i, reg := range regs {
		names[i] = reg.Name
	}
	return names
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func validateRegistration(reg *Registration) error {
	if reg == nil {
		return fmt.Errorf("registration is nil")
	}
	if reg.Name == "" {
		return fmt.Errorf("registration name is empty")
	}
	if reg.Factory == nil {
		return fmt.Errorf("runner %q: factory is nil", reg.Name)
	}
	if len(reg.Capabilities) == 0 {
		return fmt.Errorf("runner %q: capability set is empty", reg.Name)
	}
	for _, c := range reg.Capabilities {
		if !c.IsValid() {
			return fmt.Errorf("runner %q: unknown capability %q", reg.Name, c)
		}
	}

	// Probe the factory once so a capability mismatch between the runner and
	// its registration surfaces here, not at call time.
	probe := reg.Factory()
	if probe == nil {
		return fmt.Errorf("runner %q: factory returned nil", reg.Name)
	}
	declared := probe.Capabilities()
	if len(declared) == 0 {
		return fmt.Errorf("runner %q: runner declares no capabilities", reg.Name)
	}
	for _, c := range declared {
		if !regContains(reg.Capabilities, c) {
			return fmt.Errorf("runner %q: runner declares capability %q not covered by its registration", reg.Name, c)
		}
	}

	return nil
}

func regContains(caps []core.Capability, c core.Capability) bool {
	for _, rc := range caps {
		if rc == c {
			return true
		}
	}
	return false
}
