package types

// TestingTB is the part of testing.TB the fixtures need. Taking an interface
// lets the fixtures run under other test runners too.
type TestingTB interface {
	Cleanup(func())
	Fail()
	FailNow()
	Fatal(args ...interface{})
	Helper()
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Name() string
	Skip(args ...interface{})
}
