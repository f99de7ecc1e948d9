package plugin

import (
	"fmt"
	"slices"
	"strings"
)

// Registry is the read-only, ordered set of loaded plugins. Descriptors are
// sorted by (kind, order, name): lower order runs first and ties break by name,
// never by manifest position. A Registry is never modified after NewRegistry
// returns, so it may be shared by concurrent runs.
type Registry struct {
	all    []*Descriptor
	byKind map[Kind][]*Descriptor
}

// NewRegistry sorts descs and partitions the enabled ones per kind. Duplicate
// (kind, name) pairs are rejected with a *ValidationError.
func NewRegistry(descs []*Descriptor) (*Registry, error) {
	all := slices.Clone(descs)
	slices.SortStableFunc(all, compareDescriptors)

	r := &Registry{all: all, byKind: make(map[Kind][]*Descriptor, len(Kinds()))}
	seen := make(map[string]struct{}, len(all))
	for _, d := range all {
		if d == nil {
			return nil, fmt.Errorf("%w: nil descriptor", ErrPluginValidation)
		}
		key := string(d.kind) + "\x00" + d.name
		if _, dup := seen[key]; dup {
			return nil, &ValidationError{Plugin: d.name, Kind: d.kind, Part: PartName, Detail: "duplicate plugin name within kind"}
		}
		seen[key] = struct{}{}
		if d.enabled {
			r.byKind[d.kind] = append(r.byKind[d.kind], d)
		}
	}
	return r, nil
}

// EmptyRegistry returns a registry with no plugins.
func EmptyRegistry() *Registry {
	return &Registry{byKind: map[Kind][]*Descriptor{}}
}

func compareDescriptors(a, b *Descriptor) int {
	if a == nil || b == nil {
		return 0
	}
	if c := strings.Compare(string(a.kind), string(b.kind)); c != 0 {
		return c
	}
	if a.order != b.order {
		if a.order < b.order {
			return -1
		}
		return 1
	}
	return strings.Compare(a.name, b.name)
}

// ForKind returns the enabled plugins of kind k in execution order. The slice
// is a copy.
func (r *Registry) ForKind(k Kind) []*Descriptor {
	return slices.Clone(r.byKind[k])
}

// All returns every descriptor, disabled ones included, in registry order.
func (r *Registry) All() []*Descriptor {
	return slices.Clone(r.all)
}

// Len returns the number of descriptors, disabled ones included.
func (r *Registry) Len() int { return len(r.all) }

// Lookup finds a descriptor by kind and name.
func (r *Registry) Lookup(k Kind, name string) (*Descriptor, bool) {
	for _, d := range r.all {
		if d.kind == k && d.name == name {
			return d, true
		}
	}
	return nil, false
}
