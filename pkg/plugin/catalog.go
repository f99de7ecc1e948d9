package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Resolver turns a manifest callable reference into a concrete plugin value:
// either a function checked against its kind's signature, or an Invoker.
type Resolver interface {
	Resolve(ref string) (any, error)
}

// Handler is a Resolver that only serves some references.
type Handler interface {
	Resolver
	Handles(ref string) bool
}

// ParseRef splits a "module:function" reference.
func ParseRef(ref string) (module, function string, err error) {
	module, function, ok := strings.Cut(strings.TrimSpace(ref), ":")
	module, function = strings.TrimSpace(module), strings.TrimSpace(function)
	if !ok || module == "" || function == "" {
		return "", "", fmt.Errorf("%w: %q is not of the form module:function", ErrInvalidRef, ref)
	}
	return module, function, nil
}

// Catalog resolves "module:function" references against values registered
// in-process. It is the Go stand-in for importing a module and looking up an
// attribute on it.
type Catalog struct {
	mu      sync.RWMutex
	modules map[string]map[string]any
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{modules: make(map[string]map[string]any)}
}

// Register stores fn under ref. fn is not checked here; the Loader validates it
// against the kind it is loaded as.
func (c *Catalog) Register(ref string, fn any) error {
	module, function, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("cannot register nil callable under %q", ref)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	funcs, ok := c.modules[module]
	if !ok {
		funcs = make(map[string]any)
		c.modules[module] = funcs
	}
	if _, exists := funcs[function]; exists {
		return fmt.Errorf("callable already registered: %s:%s", module, function)
	}
	funcs[function] = fn
	return nil
}

// MustRegister is Register that panics on error.
func (c *Catalog) MustRegister(ref string, fn any) {
	if err := c.Register(ref, fn); err != nil {
		panic(err)
	}
}

// Handles reports whether ref is syntactically a catalog reference.
func (c *Catalog) Handles(ref string) bool {
	_, _, err := ParseRef(ref)
	return err == nil
}

// Resolve looks ref up.
func (c *Catalog) Resolve(ref string) (any, error) {
	module, function, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	funcs, ok := c.modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: no module %q", ErrUnresolvedRef, module)
	}
	fn, ok := funcs[function]
	if !ok {
		return nil, fmt.Errorf("%w: module %q has no callable %q", ErrUnresolvedRef, module, function)
	}
	return fn, nil
}

// Refs lists every registered reference in sorted order.
func (c *Catalog) Refs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var refs []string
	for module, funcs := range c.modules {
		for function := range funcs {
			refs = append(refs, module+":"+function)
		}
	}
	sort.Strings(refs)
	return refs
}

// Chain tries resolvers in order. A Handler is consulted only for references it
// handles; a plain Resolver is always tried. The first resolver asked answers.
type Chain []Resolver

// Resolve dispatches ref to the first willing resolver.
func (ch Chain) Resolve(ref string) (any, error) {
	for _, r := range ch {
		if h, ok := r.(Handler); ok && !h.Handles(ref) {
			continue
		}
		return r.Resolve(ref)
	}
	return nil, fmt.Errorf("%w: no resolver accepts %q", ErrUnresolvedRef, ref)
}
