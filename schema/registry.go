package schema

import (
	"sort"
	"sync"

	"github.com/autom8ter/docmap/errors"
)

// Registry holds a graph of classes and links their parents, subclasses and associations
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry registers and resolves the given classes
func NewRegistry(classes ...*Class) (*Registry, error) {
	r := &Registry{classes: map[string]*Class{}}
	if err := r.Register(classes...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds classes to the registry and re-resolves every class name reference
func (r *Registry) Register(classes ...*Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		if c == nil || c.name == "" {
			return errors.New(errors.Validation, "class name is required")
		}
		r.classes[c.name] = c
	}
	return r.resolve()
}

func (r *Registry) resolve() error {
	for _, c := range r.classes {
		c.children = nil
	}
	for _, name := range r.names() {
		c := r.classes[name]
		c.parent = nil
		if c.parentName != "" {
			parent, ok := r.classes[c.parentName]
			if !ok {
				return errors.New(errors.Validation, "class %s: unknown parent class %s", c.name, c.parentName)
			}
			c.parent = parent
			parent.children = append(parent.children, c)
		}
		for _, a := range c.associations {
			if a.ClassName == "" {
				if !a.Polymorphic {
					a.class = r.classes[a.Name]
				}
				continue
			}
			target, ok := r.classes[a.ClassName]
			if !ok {
				return errors.New(errors.Validation, "class %s: association %s references unknown class %s", c.name, a.Name, a.ClassName)
			}
			a.class = target
		}
	}
	for _, c := range r.classes {
		depth := 0
		for p := c.parent; p != nil; p = p.parent {
			depth++
			if p == c || depth > len(r.classes) {
				return errors.New(errors.Validation, "class %s: circular inheritance", c.name)
			}
		}
	}
	return nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Class returns the class with the name
func (r *Registry) Class(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns every registered class sorted by name
func (r *Registry) Classes() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Class
	for _, name := range r.names() {
		out = append(out, r.classes[name])
	}
	return out
}
