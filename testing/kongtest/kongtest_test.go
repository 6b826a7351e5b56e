package kongtest

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestHelp(t *testing.T) {
	type cli struct {
		Table       string        `default:"user_achievements" env:"CHECK_TABLE" help:"Table to inspect."`
		SampleLimit int           `default:"3" env:"CHECK_SAMPLE_LIMIT"`
		SkipInsert  bool          `default:"true" env:"CHECK_SKIP_INSERT"`
		Timeout     time.Duration `default:"10s" env:"CHECK_TIMEOUT"`
	}

	c := cli{}
	s := Help(t, &c)
	assert.Check(t, cmp.Contains(s, "Usage: test-app"))
	assert.Check(t, cmp.Contains(s, "--table="))
	assert.Check(t, cmp.Contains(s, "Table to inspect."))
	assert.Check(t, cmp.Contains(s, "--timeout="))
	assert.Check(t, cmp.DeepEqual(c, cli{
		Table:       "user_achievements",
		SampleLimit: 3,
		SkipInsert:  true,
		Timeout:     10 * time.Second,
	}))
}
