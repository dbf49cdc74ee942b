// Package registry maps PV names to live PVs without keeping them alive.
//
// Entries hold weak pointers: once the owner drops the last reference to a
// PV, Lookup reports it as not found and a runtime cleanup removes the
// entry. Closing a PV removes its entry immediately. Aliases are one-level
// name indirections resolved before the PV lookup.
package registry

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"weak"

	"github.com/chanaccess/cas-go/pkg/pv"
)

// Registry errors.
var (
	// ErrAliasChain indicates an alias that would point at another alias,
	// be the target of one, or point at itself.
	ErrAliasChain = errors.New("alias chain")

	// ErrEmptyName indicates an empty PV or alias name.
	ErrEmptyName = errors.New("empty name")
)

type entry struct {
	ref weak.Pointer[pv.PV]
}

// Registry is a name to PV table with weak entries. It is safe for
// concurrent use. Its lock is never held while calling into a PV.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	aliases map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
	}
}

type pruneArg struct {
	r    *Registry
	name string
	e    *entry
}

// Register binds name to p, silently replacing any previous entry. Holders
// of the previous PV keep using it.
func (r *Registry) Register(name string, p *pv.PV) error {
	if name == "" {
		return ErrEmptyName
	}
	e := &entry{ref: weak.Make(p)}

	r.mu.Lock()
	r.entries[name] = e
	r.mu.Unlock()

	runtime.AddCleanup(p, func(a pruneArg) { a.r.prune(a.name, a.e) }, pruneArg{r: r, name: name, e: e})
	p.OnClose(func() { r.prune(name, e) })
	return nil
}

// prune removes name if it is still bound to e.
func (r *Registry) prune(name string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[name] == e {
		delete(r.entries, name)
	}
}

// Unregister removes the entry for name. Aliases pointing at it stay and
// resolve to not found.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Lookup resolves name through the alias table and returns the live PV.
func (r *Registry) Lookup(name string) (*pv.PV, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	p := e.ref.Value()
	if p == nil {
		delete(r.entries, name)
		return nil, false
	}
	return p, true
}

// Exists reports whether Lookup would find a PV.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Resolve returns the canonical name for name.
func (r *Registry) Resolve(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target, ok := r.aliases[name]; ok {
		return target
	}
	return name
}

// AddAlias makes alias resolve to target. The target need not be
// registered yet. Chained aliases are rejected.
func (r *Registry) AddAlias(alias, target string) error {
	if alias == "" || target == "" {
		return ErrEmptyName
	}
	if alias == target {
		return fmt.Errorf("%w: %q aliases itself", ErrAliasChain, alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if next, ok := r.aliases[target]; ok {
		return fmt.Errorf("%w: %q is an alias of %q", ErrAliasChain, target, next)
	}
	for a, t := range r.aliases {
		if t == alias {
			return fmt.Errorf("%w: %q is the target of alias %q", ErrAliasChain, alias, a)
		}
	}
	r.aliases[alias] = target
	return nil
}

// RemoveAlias removes an alias and reports whether it existed.
func (r *Registry) RemoveAlias(alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.aliases[alias]
	delete(r.aliases, alias)
	return ok
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.aliases))
	for a, t := range r.aliases {
		out[a] = t
	}
	return out
}

// PVs returns the live PVs ordered by registered name.
func (r *Registry) PVs() []*pv.PV {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*pv.PV, 0, len(names))
	for _, name := range names {
		if p := r.entries[name].ref.Value(); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return len(r.PVs())
}
