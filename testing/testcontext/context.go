package testcontext

import (
	"context"

	"github.com/studyquest/achievement-check/config/o11y"
)

// ctx is built once at package init, beeline.Init is global and not safe to call
// from parallel tests.
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, err := o11y.Setup(context.Background(), o11y.Config{
		Format:  "text",
		Service: "test-service",
		Version: "dev",
		Mode:    "test",
	})
	if err != nil {
		panic(err)
	}
	return cx
}
