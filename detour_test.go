package detour

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/internal/fixtures"
	"github.com/glimte/detour-go/patching"
)

func newPatcher(t *testing.T, id string) (*Patcher, *fixtures.Corpus) {
	t.Helper()
	c, err := fixtures.NewCorpus(nil)
	require.NoError(t, err)
	p, err := New(id, patching.NewStore(c.Registry))
	require.NoError(t, err)
	return p, c
}

func suffix(name, s string) *interceptors.Hook {
	return &interceptors.Hook{
		Name:   name,
		Inputs: []interceptors.Input{interceptors.Ref(interceptors.ResultInput)},
		Fn: interceptors.Action(func(f *interceptors.Frame) error {
			f.SetResult(f.Result().(string) + s)
			return nil
		}),
	}
}

func TestNew(t *testing.T) {
	c, err := fixtures.NewCorpus(nil)
	require.NoError(t, err)
	store := patching.NewStore(c.Registry)

	t.Run("requires id", func(t *testing.T) {
		_, err := New("", store)
		assert.Error(t, err)
	})

	t.Run("requires store", func(t *testing.T) {
		_, err := New("owner", nil)
		assert.Error(t, err)
	})

	t.Run("applies options", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		p, err := New("owner", store, WithLogger(logger))
		require.NoError(t, err)
		assert.Equal(t, "owner", p.ID())
		assert.Same(t, store, p.Store())

		require.NoError(t, p.UnpatchAll(context.Background()))
		assert.Contains(t, buf.String(), "owner=owner")
	})
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.True(t, strings.HasPrefix(a, "detour-"))
	assert.NotEqual(t, a, b)
}

func TestPatcher_Patch(t *testing.T) {
	ctx := context.Background()
	p, c := newPatcher(t, "plugin")

	var order []string
	record := func(name string) interceptors.Action {
		return func(*interceptors.Frame) error {
			order = append(order, name)
			return nil
		}
	}

	d, err := p.Patch(ctx, c.Class0Method0, PatchSet{
		Prefix:    &interceptors.Hook{Name: "pre", Fn: record("prefix")},
		Postfix:   suffix("post", ",post"),
		Finalizer: &interceptors.Hook{Name: "fin", Fn: record("finalizer")},
		Transpiler: &interceptors.Hook{Name: "tr", Fn: interceptors.Transpiler(func(next contracts.Body) contracts.Body {
			return func(instance any, args []any) (any, error) {
				order = append(order, "body")
				return next(instance, args)
			}
		})},
	})
	require.NoError(t, err)
	assert.Len(t, d.Patches(), 4)
	assert.Equal(t, []string{"plugin"}, d.Owners())

	result, err := c.Registry.Invoke(c.Class0Method0, nil)
	require.NoError(t, err)
	assert.Equal(t, "original,post", result)
	assert.Equal(t, []string{"prefix", "body", "finalizer"}, order)

	_, err = p.Patch(ctx, c.Class0Method0, PatchSet{})
	assert.ErrorIs(t, err, ErrEmptyPatchSet)
}

func TestPatcher_UnpatchKeepsOtherOwners(t *testing.T) {
	ctx := context.Background()
	mine, c := newPatcher(t, "mine")
	theirs, err := New("theirs", mine.Store())
	require.NoError(t, err)

	_, err = mine.Patch(ctx, c.Class0Method0, PatchSet{Postfix: suffix("m", ",mine")})
	require.NoError(t, err)
	_, err = mine.Patch(ctx, c.Class9ToString, PatchSet{Postfix: suffix("m", ",mine")})
	require.NoError(t, err)
	_, err = theirs.Patch(ctx, c.Class0Method0, PatchSet{Postfix: suffix("t", ",theirs")})
	require.NoError(t, err)

	assert.Len(t, mine.PatchedMethods(), 2)
	assert.Len(t, theirs.OwnPatchedMethods(), 1)

	require.NoError(t, mine.Unpatch(ctx, c.Class9ToString, contracts.Postfix))
	_, ok := mine.PatchInfo(c.Class9ToString)
	assert.False(t, ok)

	require.NoError(t, mine.UnpatchAll(ctx))
	result, err := c.Registry.Invoke(c.Class0Method0, nil)
	require.NoError(t, err)
	assert.Equal(t, "original,theirs", result)

	info, ok := theirs.PatchInfo(c.Class0Method0)
	require.True(t, ok)
	assert.Equal(t, []string{"theirs"}, info.Owners())
	assert.Empty(t, mine.OwnPatchedMethods())
}

func TestPatcher_ApplyManifest(t *testing.T) {
	ctx := context.Background()
	p, c := newPatcher(t, "plugin")

	m, err := patching.ParseManifest([]byte(`
owner: someone-else
patches:
  - target: {type: Class11, method: TestMethod}
    prefix: [{hook: Class11Patch.Prefix}]
`))
	require.NoError(t, err)

	applied, err := p.ApplyManifest(ctx, m, c.Catalog())
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, []string{"plugin"}, applied[0].Owners())
	assert.Equal(t, "someone-else", m.Owner, "caller's manifest is left untouched")

	instance := &fixtures.Class11{}
	result, err := c.Registry.Invoke(c.Class11TestMethod, instance, 1)
	require.NoError(t, err)
	assert.Equal(t, "patched", result)
	assert.False(t, instance.OriginalMethodRan)

	_, err = p.ApplyManifest(ctx, nil, c.Catalog())
	assert.Error(t, err)
}
