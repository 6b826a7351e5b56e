package valueonly

import (
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

type key struct{}

func TestContext_KeepsValues(t *testing.T) {
	ctx := context.WithValue(context.Background(), key{}, "user_achievements")

	assert.Check(t, cmp.Equal(Context{ctx}.Value(key{}), "user_achievements"))
}

func TestContext_IgnoresCancellation(t *testing.T) {
	parent, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	assert.Assert(t, cmp.ErrorIs(parent.Err(), context.DeadlineExceeded))

	ctx := Context{parent}
	_, ok := ctx.Deadline()
	assert.Check(t, !ok)
	assert.Check(t, ctx.Done() == nil)
	assert.Check(t, ctx.Err())

	child, cancelChild := context.WithCancel(ctx)
	cancelChild()
	assert.Check(t, cmp.ErrorIs(child.Err(), context.Canceled))
}

func TestWithTimeout(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, 1))
	cancel()

	ctx, cancelTimeout := WithTimeout(parent, time.Minute)
	defer cancelTimeout()

	assert.Check(t, ctx.Err())
	deadline, ok := ctx.Deadline()
	assert.Check(t, ok)
	assert.Check(t, time.Until(deadline) > 50*time.Second)
	assert.Check(t, cmp.Equal(ctx.Value(key{}), 1))
}
