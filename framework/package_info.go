// Package framework contains the small amount of test-running infrastructure shared by the
// rest of hutils.
//
// The general model is:
//
// 1. A test context, similar to Go's *testing.T but usable outside of the Go test runner,
// associates a piece of test logic with a TestID and accumulates success/failure results.
// It implements the Errorf/FailNow pair, so assertions from testify's assert and require
// packages can be used against it.
//
// 2. A TestLogger receives progress notifications as tests start, fail, finish or are
// skipped. ConsoleTestLogger writes them to standard output.
//
// 3. Filters decide which tests run; RegexFilters implements the usual -run/-skip flags.
//
// Domain-specific code, such as the route test blocks in the testserver package, builds
// its own test API on top of the context.
package framework
