// Package registry collects ad hoc test functions and runs them with console reporting,
// outside of the Go test runner.
//
// Functions are usually registered from init functions:
//
//	func init() {
//		registry.Register("storage", "Database", checkOpenSQLite)
//	}
//
//	func checkOpenSQLite() bool { ... }
//
// and run from a small main program with registry.TestAll() or registry.TestModule("storage").
package registry

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/henryotoole/hutils/framework"
)

const bannerLine = "###########################################"

// TestFunc is a registered test. It takes no arguments and reports whether it succeeded.
type TestFunc func() bool

// Entry is one registered test function.
type Entry struct {
	Fn           TestFunc
	ModuleName   string
	ObjectName   string
	FunctionName string
}

// ID identifies the entry as module/object/function, which is what filters match against.
func (e Entry) ID() framework.TestID {
	return framework.NewTestID(e.ModuleName, e.ObjectName, e.FunctionName)
}

// Registry is an ordered list of test functions.
type Registry struct {
	// Out receives the progress report. If nil, os.Stdout is used.
	Out io.Writer

	entries []Entry
	lock    sync.Mutex
}

func New() *Registry {
	return &Registry{}
}

// Register adds fn under the given module and object names. The function name is taken from
// fn's symbol. fn is returned unchanged, so registration can wrap a declaration:
//
//	var checkThing = registry.Register("mod", "Thing", func() bool { ... })
func (r *Registry) Register(moduleName, objectName string, fn TestFunc) TestFunc {
	return r.RegisterNamed(moduleName, objectName, functionName(fn), fn)
}

// RegisterNamed is like Register with an explicit function name.
func (r *Registry) RegisterNamed(moduleName, objectName, functionName string, fn TestFunc) TestFunc {
	r.lock.Lock()
	r.entries = append(r.entries, Entry{
		Fn:           fn,
		ModuleName:   moduleName,
		ObjectName:   objectName,
		FunctionName: functionName,
	})
	r.lock.Unlock()
	return fn
}

// Entries returns a copy of the registered entries in registration order.
func (r *Registry) Entries() []Entry {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Entry(nil), r.entries...)
}

// TestAll runs every registered function.
func (r *Registry) TestAll() framework.Results {
	return r.Run(nil)
}

// TestModule runs the functions registered under moduleName.
func (r *Registry) TestModule(moduleName string) framework.Results {
	return r.Run(func(id framework.TestID) bool {
		return len(id.Path) > 0 && id.Path[0] == moduleName
	})
}

// Run runs the functions accepted by filter, or all of them if filter is nil.
func (r *Registry) Run(filter framework.Filter) framework.Results {
	var selected []Entry
	for _, e := range r.Entries() {
		if filter == nil || filter(e.ID()) {
			selected = append(selected, e)
		}
	}
	return r.runEntries(selected)
}

// Output returns the writer that receives the progress report. Test functions can print
// diagnostics to it so that they appear next to their banner.
func (r *Registry) Output() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Registry) runEntries(entries []Entry) framework.Results {
	out := r.Output()
	var results framework.Results
	total := len(entries)
	successes, fails := 0, 0

	for i, e := range entries {
		count := i + 1
		pct := 100 * count / total
		fmt.Fprint(out, "\n\n\n\n")
		fmt.Fprintln(out, bannerLine)
		fmt.Fprintf(out, "#### Testing '%s'\n", e.FunctionName)
		fmt.Fprintf(out, "#### Module: %s\n", e.ModuleName)
		fmt.Fprintf(out, "#### Object: %s\n", e.ObjectName)
		fmt.Fprintf(out, "#### %d of %d (%d%%) test functions.\n", count, total, pct)
		fmt.Fprintln(out, bannerLine)

		success, err := callTest(e.Fn)
		result := framework.TestResult{TestID: e.ID()}
		if err != nil {
			fmt.Fprintln(out, err)
			result.Errors = append(result.Errors, err)
		}
		results.Tests = append(results.Tests, result)

		if success {
			successes++
			fmt.Fprintln(out, color.GreenString("Test succeeded!"))
		} else {
			fails++
			results.Failures = append(results.Failures, result)
			fmt.Fprintln(out, color.RedString("Test failed."))
		}
	}

	fmt.Fprint(out, "\n\n\n\n")
	fmt.Fprintf(out, "All tests complete. %d succeeded and %d failed.\n", successes, fails)
	fmt.Fprint(out, "\n\n\n")
	fmt.Fprintln(out, "Failures:")
	for _, f := range results.Failures {
		fmt.Fprintln(out, f.TestID.Path[2])
	}
	return results
}

// callTest runs fn, turning a panic into a failure with the stack trace attached.
func callTest(fn TestFunc) (success bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			err = fmt.Errorf("panic in test function: %+v\n%s", r, string(debug.Stack()))
		}
	}()
	return fn(), nil
}

// functionName returns the unqualified name of fn's symbol, such as "checkOpenSQLite" or,
// for a closure, "init.func1".
func functionName(fn TestFunc) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Default is the registry used by the package-level functions.
var Default = New()

func Register(moduleName, objectName string, fn TestFunc) TestFunc {
	return Default.Register(moduleName, objectName, fn)
}

func RegisterNamed(moduleName, objectName, functionName string, fn TestFunc) TestFunc {
	return Default.RegisterNamed(moduleName, objectName, functionName, fn)
}

func TestAll() framework.Results {
	return Default.TestAll()
}

func TestModule(moduleName string) framework.Results {
	return Default.TestModule(moduleName)
}
