package patching_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/patching"
)

func TestProcessor_PatchAndUnpatch(t *testing.T) {
	ctx := context.Background()
	c := newCorpus(t)
	store := patching.NewStore(c.Registry)

	var trace []string
	step := func(name string) interceptors.Hook {
		return interceptors.Hook{
			Name: name,
			Fn: interceptors.Action(func(*interceptors.Frame) error {
				trace = append(trace, name)
				return nil
			}),
		}
	}

	processor := patching.NewProcessor(store, "proc", c.Class9ToString).
		AddPrefix(step("prefix")).
		AddPostfix(step("postfix")).
		AddFinalizer(step("finalizer")).
		AddTranspiler(interceptors.Hook{
			Name: "transpiler",
			Fn: interceptors.Transpiler(func(next contracts.Body) contracts.Body {
				return func(instance any, args []any) (any, error) {
					result, err := next(instance, args)
					if err != nil {
						return nil, err
					}
					return result.(string) + "!", nil
				}
			}),
		})
	assert.Equal(t, 4, processor.Pending())

	d, err := processor.Patch(ctx)
	require.NoError(t, err)
	assert.Zero(t, processor.Pending())
	assert.Len(t, d.Patches(), 4)

	assert.Equal(t, "foobar!", mustInvoke(t, c, c.Class9ToString))
	assert.Equal(t, []string{"prefix", "postfix", "finalizer"}, trace)

	require.NoError(t, processor.Unpatch(ctx, contracts.Transpiler))
	assert.Equal(t, "foobar", mustInvoke(t, c, c.Class9ToString))

	require.NoError(t, processor.UnpatchHook(ctx, contracts.Prefix, "prefix"))
	trace = nil
	mustInvoke(t, c, c.Class9ToString)
	assert.Equal(t, []string{"postfix", "finalizer"}, trace)

	require.NoError(t, processor.Unpatch(ctx, contracts.All))
	assert.False(t, c.Registry.IsPatched(c.Class9ToString))
}

func TestProcessor_FailedPatchKeepsPending(t *testing.T) {
	ctx := context.Background()
	c := newCorpus(t)
	store := patching.NewStore(c.Registry)

	processor := patching.NewProcessor(store, "proc", c.Class1Method1).
		AddPostfix(interceptors.Hook{
			Name:   "needs-result",
			Inputs: []interceptors.Input{interceptors.In(interceptors.ResultInput)},
			Fn:     interceptors.Action(func(*interceptors.Frame) error { return nil }),
		})

	_, err := processor.Patch(ctx)
	require.ErrorIs(t, err, contracts.ErrBinding)
	assert.Equal(t, 1, processor.Pending())
	assert.False(t, c.Registry.IsPatched(c.Class1Method1))
}

func TestProcessor_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	c := newCorpus(t)
	store := patching.NewStore(c.Registry)

	mine := patching.NewProcessor(store, "mine", c.Class0Method0).AddPostfix(suffixHook("m", ",mine"))
	theirs := patching.NewProcessor(store, "theirs", c.Class0Method0).AddPostfix(suffixHook("t", ",theirs"))
	_, err := mine.Patch(ctx)
	require.NoError(t, err)
	_, err = theirs.Patch(ctx)
	require.NoError(t, err)

	require.NoError(t, mine.Unpatch(ctx, contracts.All))
	assert.Equal(t, "original,theirs", mustInvoke(t, c, c.Class0Method0))
}
