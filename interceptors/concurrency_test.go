package interceptors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentInvocationsAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	original := newMethod("string", stringParam("val"))
	body := func(_ any, args []any) (any, error) {
		return args[0].(string), nil
	}

	d := mustCompile(t, original, body, nil,
		prefix(hook("tag", 0, Action(func(f *Frame) error {
			f.SetState(f.Arg("val"))
			f.SetArg("val", f.Arg("val").(string)+"-pre")
			return nil
		}), Ref("val"), In(StateInput))),
		postfix(hook("tag", 0, Action(func(f *Frame) error {
			f.SetResult(fmt.Sprintf("%s|%s", f.Result(), f.State()))
			return nil
		}), Ref(ResultInput), In(StateInput))),
	)

	const workers = 64
	results := make([]any, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			r, err := d.Invoke(nil, []any{fmt.Sprintf("call%d", i)})
			results[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("call%d-pre|call%d", i, i), r)
	}
}
