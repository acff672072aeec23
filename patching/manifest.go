package patching

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"gopkg.in/yaml.v3"
)

// Catalog maps hook names used in manifests to hook definitions
type Catalog map[string]interceptors.Hook

// Manifest declares a set of patches for one owner
type Manifest struct {
	Owner   string          `yaml:"owner"`
	Patches []ManifestPatch `yaml:"patches"`
}

// ManifestPatch attaches hooks to one target
type ManifestPatch struct {
	Target     ManifestTarget `yaml:"target"`
	Prefix     []ManifestHook `yaml:"prefix"`
	Postfix    []ManifestHook `yaml:"postfix"`
	Transpiler []ManifestHook `yaml:"transpiler"`
	Finalizer  []ManifestHook `yaml:"finalizer"`
}

// ManifestTarget identifies an original. Omitting params leaves the
// signature unspecified; "params: []" selects the parameterless overload.
type ManifestTarget struct {
	Type   string   `yaml:"type"`
	Method string   `yaml:"method"`
	Params []string `yaml:"params"`
}

// ManifestHook references a catalog hook, optionally overriding its priority
// and aliases
type ManifestHook struct {
	Hook     string            `yaml:"hook"`
	Priority string            `yaml:"priority,omitempty"`
	Aliases  map[string]string `yaml:"aliases,omitempty"`
}

// ParseManifest decodes a YAML manifest
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and decodes a YAML manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks the manifest structure without resolving anything
func (m *Manifest) Validate() error {
	if m.Owner == "" {
		return fmt.Errorf("manifest: owner is required")
	}
	for i, p := range m.Patches {
		if p.Target.Type == "" || p.Target.Method == "" {
			return fmt.Errorf("manifest: patch %d: target type and method are required", i)
		}
		total := len(p.Prefix) + len(p.Postfix) + len(p.Transpiler) + len(p.Finalizer)
		if total == 0 {
			return fmt.Errorf("manifest: patch %d: no hooks for %s.%s", i, p.Target.Type, p.Target.Method)
		}
	}
	return nil
}

// Apply resolves every target and hook and applies them to the store, one
// target at a time. Failures are collected; targets that resolve and bind are
// applied regardless of failures elsewhere.
func (m *Manifest) Apply(ctx context.Context, store *Store, catalog Catalog) ([]*Descriptor, error) {
	var applied []*Descriptor
	var errs []error

	for _, mp := range m.Patches {
		original, err := store.Methods().Resolve(mp.Target.Type, mp.Target.Method, mp.Target.Params)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		patches, err := m.resolveHooks(store, mp, catalog)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		d, err := store.Apply(ctx, m.Owner, original, patches)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		applied = append(applied, d)
	}

	return applied, errors.Join(errs...)
}

func (m *Manifest) resolveHooks(store *Store, mp ManifestPatch, catalog Catalog) ([]interceptors.Patch, error) {
	roles := []struct {
		role  contracts.PatchType
		hooks []ManifestHook
	}{
		{contracts.Prefix, mp.Prefix},
		{contracts.Postfix, mp.Postfix},
		{contracts.Transpiler, mp.Transpiler},
		{contracts.Finalizer, mp.Finalizer},
	}

	var patches []interceptors.Patch
	for _, r := range roles {
		for _, mh := range r.hooks {
			hook, ok := catalog[mh.Hook]
			if !ok {
				return nil, fmt.Errorf("manifest: unknown hook %q for %s.%s", mh.Hook, mp.Target.Type, mp.Target.Method)
			}

			if mh.Priority != "" {
				p, ok := contracts.ParsePriority(mh.Priority)
				if !ok {
					store.logger.Warn("malformed priority, using normal",
						"hook", mh.Hook,
						"priority", mh.Priority,
					)
				}
				hook.Priority = p
			}

			if len(mh.Aliases) > 0 {
				aliases := make(map[string]string, len(hook.Aliases)+len(mh.Aliases))
				for k, v := range hook.Aliases {
					aliases[k] = v
				}
				for k, v := range mh.Aliases {
					aliases[k] = v
				}
				hook.Aliases = aliases
			}

			patches = append(patches, interceptors.Patch{Role: r.role, Hook: hook})
		}
	}

	return patches, nil
}
