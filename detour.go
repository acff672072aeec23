// Copyright 2024 Detour Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package detour

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/patching"
)

// ErrEmptyPatchSet is returned when Patch is given no hooks
var ErrEmptyPatchSet = errors.New("detour: patch set has no hooks")

// Patcher is the main entry point: an owner identity that attaches and
// detaches hooks on behalf of one plugin or subsystem
type Patcher struct {
	id     string
	store  *patching.Store
	logger *slog.Logger
}

// PatchSet names at most one hook per role
type PatchSet struct {
	Prefix     *interceptors.Hook
	Postfix    *interceptors.Hook
	Transpiler *interceptors.Hook
	Finalizer  *interceptors.Hook
}

// New creates a patcher owning every patch it applies under id
func New(id string, store *patching.Store, options ...Option) (*Patcher, error) {
	if id == "" {
		return nil, fmt.Errorf("patcher id cannot be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("patch store cannot be nil")
	}

	cfg := &config{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	return &Patcher{
		id:     id,
		store:  store,
		logger: cfg.logger.With("owner", id),
	}, nil
}

// NewID returns a random owner id
func NewID() string {
	return "detour-" + uuid.NewString()
}

// ID returns the owner id
func (p *Patcher) ID() string {
	return p.id
}

// Store returns the patch store the patcher works on
func (p *Patcher) Store() *patching.Store {
	return p.store
}

// CreateProcessor returns a processor staging hooks for original under this owner
func (p *Patcher) CreateProcessor(original *contracts.MethodRef) *patching.Processor {
	return patching.NewProcessor(p.store, p.id, original)
}

// Patch attaches the hooks of set to original in one step
func (p *Patcher) Patch(ctx context.Context, original *contracts.MethodRef, set PatchSet) (*patching.Descriptor, error) {
	proc := p.CreateProcessor(original)
	if set.Prefix != nil {
		proc.AddPrefix(*set.Prefix)
	}
	if set.Postfix != nil {
		proc.AddPostfix(*set.Postfix)
	}
	if set.Transpiler != nil {
		proc.AddTranspiler(*set.Transpiler)
	}
	if set.Finalizer != nil {
		proc.AddFinalizer(*set.Finalizer)
	}
	if proc.Pending() == 0 {
		return nil, ErrEmptyPatchSet
	}

	return proc.Patch(ctx)
}

// Unpatch removes this owner's patches of role from original
func (p *Patcher) Unpatch(ctx context.Context, original *contracts.MethodRef, role contracts.PatchType) error {
	_, err := p.store.Remove(ctx, original, role, p.id, "")
	return err
}

// UnpatchAll removes every patch this owner applied
func (p *Patcher) UnpatchAll(ctx context.Context) error {
	n, err := p.store.RemoveOwner(ctx, p.id)
	if err != nil {
		return err
	}
	p.logger.Debug("unpatched all", "removed", n)
	return nil
}

// PatchInfo returns the descriptor of original, including other owners' patches
func (p *Patcher) PatchInfo(original *contracts.MethodRef) (*patching.Descriptor, bool) {
	return p.store.Descriptor(original)
}

// PatchedMethods returns every original that currently has patches
func (p *Patcher) PatchedMethods() []*contracts.MethodRef {
	return p.store.PatchedMethods()
}

// OwnPatchedMethods returns the originals carrying at least one patch of this owner
func (p *Patcher) OwnPatchedMethods() []*contracts.MethodRef {
	var own []*contracts.MethodRef
	for _, ref := range p.store.PatchedMethods() {
		d, ok := p.store.Descriptor(ref)
		if !ok {
			continue
		}
		for _, o := range d.Owners() {
			if o == p.id {
				own = append(own, ref)
				break
			}
		}
	}
	return own
}

// ApplyManifest applies a manifest under this owner, whatever owner the
// manifest names
func (p *Patcher) ApplyManifest(ctx context.Context, manifest *patching.Manifest, catalog patching.Catalog) ([]*patching.Descriptor, error) {
	if manifest == nil {
		return nil, fmt.Errorf("manifest cannot be nil")
	}

	m := *manifest
	if m.Owner != p.id {
		p.logger.Debug("manifest owner overridden", "manifestOwner", m.Owner)
		m.Owner = p.id
	}

	applied, err := m.Apply(ctx, p.store, catalog)
	if err != nil {
		p.logger.Warn("manifest applied with errors",
			"applied", len(applied),
			"error", err,
		)
	}
	return applied, err
}
