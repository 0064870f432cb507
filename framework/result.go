package framework

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Succeeded returns the number of tests that ran and did not fail.
func (r Results) Succeeded() int {
	n := 0
	for _, t := range r.Tests {
		if !t.Skipped {
			n++
		}
	}
	return n - len(r.Failures)
}

type TestID struct {
	Path []string
}

func NewTestID(path ...string) TestID {
	return TestID{Path: append([]string(nil), path...)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// Plus returns a new TestID with one more path element.
func (t TestID) Plus(name string) TestID {
	return TestID{Path: append(append([]string(nil), t.Path...), name)}
}

// PrintResults writes a summary of the test run, followed by each failed test and its errors.
func PrintResults(out io.Writer, results Results) {
	if results.OK() {
		fmt.Fprintln(out, color.GreenString("All tests passed (%d)", results.Succeeded()))
		return
	}
	fmt.Fprintln(out, color.RedString("FAILED TESTS (%d of %d):", len(results.Failures), len(results.Tests)))
	for _, f := range results.Failures {
		fmt.Fprintf(out, "* %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	}
}
