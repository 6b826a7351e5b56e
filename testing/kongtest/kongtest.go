// Package kongtest renders the help output of a kong CLI struct in tests.
package kongtest

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// Help parses --help against cli and returns what kong printed. Parsing also
// applies the defaults, so cli can be inspected afterwards.
func Help(t *testing.T, cli interface{}, options ...kong.Option) string {
	t.Helper()

	w := bytes.NewBuffer(nil)
	rc := -1
	options = append([]kong.Option{
		kong.Name("test-app"),
		kong.Writers(w, w),
		kong.Exit(func(i int) {
			rc = i
		}),
	}, options...)
	app, err := kong.New(cli, options...)
	assert.Check(t, err)

	_, err = app.Parse([]string{"--help"})
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(0, rc))

	return w.String()
}
