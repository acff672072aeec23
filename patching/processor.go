package patching

import (
	"context"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
)

// Processor stages hooks for one original on behalf of one owner
type Processor struct {
	store    *Store
	owner    string
	original *contracts.MethodRef
	pending  []interceptors.Patch
}

// NewProcessor creates a processor for original
func NewProcessor(store *Store, owner string, original *contracts.MethodRef) *Processor {
	return &Processor{
		store:    store,
		owner:    owner,
		original: original,
	}
}

// AddPrefix stages a prefix
func (p *Processor) AddPrefix(hook interceptors.Hook) *Processor {
	return p.add(contracts.Prefix, hook)
}

// AddPostfix stages a postfix
func (p *Processor) AddPostfix(hook interceptors.Hook) *Processor {
	return p.add(contracts.Postfix, hook)
}

// AddTranspiler stages a transpiler
func (p *Processor) AddTranspiler(hook interceptors.Hook) *Processor {
	return p.add(contracts.Transpiler, hook)
}

// AddFinalizer stages a finalizer
func (p *Processor) AddFinalizer(hook interceptors.Hook) *Processor {
	return p.add(contracts.Finalizer, hook)
}

func (p *Processor) add(role contracts.PatchType, hook interceptors.Hook) *Processor {
	p.pending = append(p.pending, interceptors.Patch{Role: role, Hook: hook})
	return p
}

// Pending returns the number of staged hooks
func (p *Processor) Pending() int {
	return len(p.pending)
}

// Patch applies the staged hooks. They stay staged when binding fails.
func (p *Processor) Patch(ctx context.Context) (*Descriptor, error) {
	d, err := p.store.Apply(ctx, p.owner, p.original, p.pending)
	if err != nil {
		return nil, err
	}
	p.pending = nil
	return d, nil
}

// Unpatch removes this owner's patches of a role from the original
func (p *Processor) Unpatch(ctx context.Context, role contracts.PatchType) error {
	_, err := p.store.Remove(ctx, p.original, role, p.owner, "")
	return err
}

// UnpatchHook removes one named hook of this owner from the original
func (p *Processor) UnpatchHook(ctx context.Context, role contracts.PatchType, hook string) error {
	_, err := p.store.Remove(ctx, p.original, role, p.owner, hook)
	return err
}
