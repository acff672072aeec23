package patching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/internal/journal"
	"github.com/glimte/detour-go/registry"
)

// Store holds the descriptor of every patched original of one registry
type Store struct {
	mu          sync.Mutex
	methods     *registry.Registry
	descriptors map[string]*Descriptor
	nextIndex   int
	logger      *slog.Logger
	journal     journal.Journal
	sink        EventSink
	observer    interceptors.Observer
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the store logger; it is also handed to every dispatcher
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventSink publishes lifecycle events to sink
func WithEventSink(sink EventSink) StoreOption {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithObserver attaches an observer to every dispatcher the store compiles
func WithObserver(observer interceptors.Observer) StoreOption {
	return func(s *Store) {
		s.observer = observer
	}
}

// WithJournalCapacity bounds the lifecycle journal
func WithJournalCapacity(entries int) StoreOption {
	return func(s *Store) {
		s.journal = journal.NewInMemoryJournal(journal.WithMaxEntries(entries))
	}
}

// NewStore creates a store patching the methods of a registry
func NewStore(methods *registry.Registry, opts ...StoreOption) *Store {
	s := &Store{
		methods:     methods,
		descriptors: make(map[string]*Descriptor),
		logger:      slog.Default(),
		journal:     journal.NewInMemoryJournal(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Methods returns the registry the store patches
func (s *Store) Methods() *registry.Registry {
	return s.methods
}

// Apply attaches patches for owner to an original and installs the result.
// Attachment order follows the slice order. On a binding error nothing
// changes: the previously installed body keeps running.
func (s *Store) Apply(ctx context.Context, owner string, original *contracts.MethodRef, patches []interceptors.Patch) (*Descriptor, error) {
	if owner == "" {
		return nil, fmt.Errorf("patch owner cannot be empty")
	}
	if original == nil {
		return nil, fmt.Errorf("original cannot be nil")
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("no patches to apply to %s", original.Key())
	}

	m, err := s.methods.Method(original)
	if err != nil {
		return nil, err
	}
	original = m.Ref()

	for _, p := range patches {
		switch p.Role {
		case contracts.Prefix, contracts.Postfix, contracts.Transpiler, contracts.Finalizer:
		default:
			return nil, &contracts.BindingError{
				Original: original.Key(),
				Role:     p.Role,
				Hook:     p.Hook.Name,
				Reason:   fmt.Sprintf("role %s cannot be attached", p.Role),
			}
		}
	}

	start := time.Now()
	s.mu.Lock()

	key := original.Key()
	next := s.current(original).clone()
	index := s.nextIndex
	for _, p := range patches {
		p.Owner = owner
		p.Index = index
		index++
		next.add(p)
	}

	err = s.install(next)
	if err == nil {
		s.nextIndex = index
		next.UpdatedAt = time.Now()
		s.descriptors[key] = next
	}
	s.mu.Unlock()

	if err != nil {
		entry := s.entry(owner, key, journal.ActionRejected, countRoles(patches), start)
		entry.Error = err.Error()
		s.record(ctx, entry)
		s.logger.Warn("patch rejected",
			"method", key,
			"owner", owner,
			"error", err,
		)
		return nil, err
	}

	s.record(ctx, s.entry(owner, key, journal.ActionApplied, countRoles(patches), start))
	s.logger.Info("patch applied",
		"method", key,
		"owner", owner,
		"patches", len(patches),
	)

	return next.clone(), nil
}

// Remove detaches the patches of an original matching role, owner and hook
// name. Role All, an empty owner and an empty hook match anything. When no
// patch is left the original body is restored.
func (s *Store) Remove(ctx context.Context, original *contracts.MethodRef, role contracts.PatchType, owner, hook string) (int, error) {
	if original == nil {
		return 0, fmt.Errorf("original cannot be nil")
	}

	start := time.Now()
	s.mu.Lock()
	removed, action, err := s.removeLocked(original, matcher(role, owner, hook))
	s.mu.Unlock()

	if err != nil || len(removed) == 0 {
		return 0, err
	}

	s.record(ctx, s.entry(owner, original.Key(), action, countRoles(removed), start))
	s.logger.Info("patch removed",
		"method", original.Key(),
		"owner", owner,
		"role", role.String(),
		"removed", len(removed),
	)

	return len(removed), nil
}

// RemoveOwner detaches every patch owned by owner from every original
func (s *Store) RemoveOwner(ctx context.Context, owner string) (int, error) {
	if owner == "" {
		return 0, fmt.Errorf("patch owner cannot be empty")
	}

	start := time.Now()
	var entries []*journal.Entry
	var err error
	total := 0

	s.mu.Lock()
	for _, d := range s.sortedDescriptors() {
		removed, action, rerr := s.removeLocked(d.Original, matcher(contracts.All, owner, ""))
		if rerr != nil {
			err = rerr
			break
		}
		if len(removed) > 0 {
			total += len(removed)
			entries = append(entries, s.entry(owner, d.Original.Key(), action, countRoles(removed), start))
		}
	}
	s.mu.Unlock()

	// removals that happened before a failure are still recorded
	for _, e := range entries {
		s.record(ctx, e)
	}
	if total > 0 {
		s.logger.Info("owner unpatched",
			"owner", owner,
			"removed", total,
		)
	}
	if err != nil {
		s.logger.Error("owner unpatch stopped",
			"owner", owner,
			"removed", total,
			"error", err,
		)
	}

	return total, err
}

// Descriptor returns a copy of the descriptor installed for an original
func (s *Store) Descriptor(original *contracts.MethodRef) (*Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.descriptors[original.Key()]
	if !ok {
		return nil, false
	}
	return d.clone(), true
}

// PatchedMethods returns every original that currently has patches, by key
func (s *Store) PatchedMethods() []*contracts.MethodRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]*contracts.MethodRef, 0, len(s.descriptors))
	for _, d := range s.sortedDescriptors() {
		refs = append(refs, d.Original)
	}
	return refs
}

// History returns the lifecycle journal of an original, oldest first
func (s *Store) History(ctx context.Context, original *contracts.MethodRef) ([]*journal.Entry, error) {
	return s.journal.ByMethod(ctx, original.Key())
}

// current returns the installed descriptor or a fresh one; callers hold s.mu
func (s *Store) current(original *contracts.MethodRef) *Descriptor {
	if d, ok := s.descriptors[original.Key()]; ok {
		return d
	}
	return newDescriptor(original)
}

// removeLocked applies a removal filter to one original; callers hold s.mu
func (s *Store) removeLocked(original *contracts.MethodRef, match func(interceptors.Patch) bool) ([]interceptors.Patch, journal.Action, error) {
	key := original.Key()
	cur, ok := s.descriptors[key]
	if !ok {
		return nil, "", nil
	}

	next := cur.clone()
	removed := next.remove(match)
	if len(removed) == 0 {
		return nil, "", nil
	}

	if next.IsEmpty() {
		if err := s.methods.Revert(original); err != nil {
			return nil, "", fmt.Errorf("failed to revert %s: %w", key, err)
		}
		delete(s.descriptors, key)
		return removed, journal.ActionReverted, nil
	}

	if err := s.install(next); err != nil {
		return nil, "", fmt.Errorf("failed to reinstall %s: %w", key, err)
	}
	next.UpdatedAt = time.Now()
	s.descriptors[key] = next
	return removed, journal.ActionRemoved, nil
}

// install compiles a descriptor and swaps it in; callers hold s.mu
func (s *Store) install(d *Descriptor) error {
	body, err := s.methods.Original(d.Original)
	if err != nil {
		return err
	}

	opts := []interceptors.Option{interceptors.WithLogger(s.logger)}
	if s.observer != nil {
		opts = append(opts, interceptors.WithObserver(s.observer))
	}

	dispatcher, err := interceptors.Compile(d.Original, body, s.methods, d.Patches(), opts...)
	if err != nil {
		return err
	}

	return s.methods.Install(d.Original, dispatcher.Invoke)
}

func (s *Store) sortedDescriptors() []*Descriptor {
	ds := make([]*Descriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool {
		return ds[i].Original.Key() < ds[j].Original.Key()
	})
	return ds
}

type roleCounts struct {
	prefixes, postfixes, transpilers, finalizers int
}

func countRoles(patches []interceptors.Patch) roleCounts {
	var c roleCounts
	for _, p := range patches {
		switch p.Role {
		case contracts.Prefix:
			c.prefixes++
		case contracts.Postfix:
			c.postfixes++
		case contracts.Transpiler:
			c.transpilers++
		case contracts.Finalizer:
			c.finalizers++
		}
	}
	return c
}

func (s *Store) entry(owner, method string, action journal.Action, c roleCounts, start time.Time) *journal.Entry {
	return &journal.Entry{
		Owner:       owner,
		Method:      method,
		Action:      action,
		Prefixes:    c.prefixes,
		Postfixes:   c.postfixes,
		Transpilers: c.transpilers,
		Finalizers:  c.finalizers,
		Duration:    time.Since(start),
	}
}

// record journals an entry and forwards it to the sink. Sink failures are
// logged: the administrative change has already happened.
func (s *Store) record(ctx context.Context, e *journal.Entry) {
	if err := s.journal.Record(ctx, e); err != nil {
		s.logger.Warn("failed to journal patch operation", "method", e.Method, "error", err)
	}

	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, eventFromEntry(e)); err != nil {
		s.logger.Warn("failed to publish lifecycle event",
			"method", e.Method,
			"event", string(actionEvents[e.Action]),
			"error", err,
		)
	}
}
