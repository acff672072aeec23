package patching

import (
	"sort"
	"time"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/google/uuid"
)

// Descriptor groups the patches attached to one original. A descriptor is
// never mutated once installed: every change produces a new one.
type Descriptor struct {
	ID          string
	Original    *contracts.MethodRef
	Prefixes    []interceptors.Patch
	Postfixes   []interceptors.Patch
	Transpilers []interceptors.Patch
	Finalizers  []interceptors.Patch
	UpdatedAt   time.Time
}

func newDescriptor(original *contracts.MethodRef) *Descriptor {
	return &Descriptor{
		ID:       uuid.New().String(),
		Original: original,
	}
}

// Patches returns every attached patch in attachment order
func (d *Descriptor) Patches() []interceptors.Patch {
	all := make([]interceptors.Patch, 0, d.count())
	all = append(all, d.Prefixes...)
	all = append(all, d.Postfixes...)
	all = append(all, d.Transpilers...)
	all = append(all, d.Finalizers...)
	return interceptors.SortByAttachment(all)
}

// Owners returns the distinct owners with patches on this original
func (d *Descriptor) Owners() []string {
	seen := make(map[string]bool)
	var owners []string
	for _, p := range d.Patches() {
		if !seen[p.Owner] {
			seen[p.Owner] = true
			owners = append(owners, p.Owner)
		}
	}
	sort.Strings(owners)
	return owners
}

// IsEmpty reports whether no patches remain
func (d *Descriptor) IsEmpty() bool {
	return d.count() == 0
}

func (d *Descriptor) count() int {
	return len(d.Prefixes) + len(d.Postfixes) + len(d.Transpilers) + len(d.Finalizers)
}

func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Prefixes = append([]interceptors.Patch(nil), d.Prefixes...)
	c.Postfixes = append([]interceptors.Patch(nil), d.Postfixes...)
	c.Transpilers = append([]interceptors.Patch(nil), d.Transpilers...)
	c.Finalizers = append([]interceptors.Patch(nil), d.Finalizers...)
	return &c
}

func (d *Descriptor) add(p interceptors.Patch) {
	switch p.Role {
	case contracts.Prefix:
		d.Prefixes = append(d.Prefixes, p)
	case contracts.Postfix:
		d.Postfixes = append(d.Postfixes, p)
	case contracts.Transpiler:
		d.Transpilers = append(d.Transpilers, p)
	case contracts.Finalizer:
		d.Finalizers = append(d.Finalizers, p)
	}
}

// remove drops every patch matching the filter and returns the dropped ones
func (d *Descriptor) remove(match func(interceptors.Patch) bool) []interceptors.Patch {
	var removed []interceptors.Patch
	filter := func(ps []interceptors.Patch) []interceptors.Patch {
		kept := ps[:0]
		for _, p := range ps {
			if match(p) {
				removed = append(removed, p)
				continue
			}
			kept = append(kept, p)
		}
		return kept
	}

	d.Prefixes = filter(d.Prefixes)
	d.Postfixes = filter(d.Postfixes)
	d.Transpilers = filter(d.Transpilers)
	d.Finalizers = filter(d.Finalizers)

	return removed
}

// matcher builds a removal filter. Role All, an empty owner and an empty hook
// name each match anything.
func matcher(role contracts.PatchType, owner, hook string) func(interceptors.Patch) bool {
	return func(p interceptors.Patch) bool {
		if role != contracts.All && p.Role != role {
			return false
		}
		if owner != "" && p.Owner != owner {
			return false
		}
		if hook != "" && p.Hook.Name != hook {
			return false
		}
		return true
	}
}
