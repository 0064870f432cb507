package framework

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCollectsPassesAndFailures(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("passes", func(c *Context) {})
		c.Run("fails", func(c *Context) {
			c.Errorf("bad value %d", 3)
		})
		c.Run("fails now", func(c *Context) {
			c.FailNow()
			t.Error("should not get here")
		})
	})

	require.Len(t, results.Tests, 3)
	require.Len(t, results.Failures, 2)
	assert.Equal(t, "fails", results.Failures[0].TestID.String())
	assert.Equal(t, "bad value 3", results.Failures[0].Errors[0].Error())
	assert.Equal(t, "fails now", results.Failures[1].TestID.String())
	assert.Equal(t, "test failed with no failure message", results.Failures[1].Errors[0].Error())
	assert.False(t, results.OK())
	assert.Equal(t, 1, results.Succeeded())
}

func TestRunRecoversUnexpectedPanic(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("group", func(c *Context) {
			c.Run("panics", func(c *Context) {
				panic(errors.New("boom"))
			})
		})
	})

	require.Len(t, results.Failures, 1)
	assert.Equal(t, "group/panics", results.Failures[0].TestID.String())
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unexpected panic in test: boom")
}

func TestSkipIsNotAFailure(t *testing.T) {
	var logged bytes.Buffer
	logger := &ConsoleTestLogger{Out: &logged}
	results := Run(nil, logger, func(c *Context) {
		c.Run("skipped", func(c *Context) {
			c.SkipWithReason("not today")
		})
	})

	require.Len(t, results.Tests, 1)
	assert.True(t, results.Tests[0].Skipped)
	assert.True(t, results.OK())
	assert.Contains(t, logged.String(), "skipped (not today)")
}

func TestFilterExcludesTests(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustNotMatch.Set("^b/"))

	var ran []string
	results := Run(filters.AsFilter, nil, func(c *Context) {
		for _, name := range []string{"a", "b"} {
			c.Run(name, func(c *Context) {
				c.Run("x", func(c *Context) {
					ran = append(ran, c.ID().String())
				})
			})
		}
	})

	assert.Equal(t, []string{"a/x"}, ran)
	assert.True(t, results.OK())
}

func TestDeferredFunctionsRunInReverseOrderAfterFailure(t *testing.T) {
	var order []int
	Run(nil, nil, func(c *Context) {
		c.Run("t", func(c *Context) {
			c.Defer(func() { order = append(order, 1) })
			c.Defer(func() { order = append(order, 2) })
			c.FailNow()
		})
	})
	assert.Equal(t, []int{2, 1}, order)
}

func TestAssertionsWorkAgainstContext(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("require", func(c *Context) {
			require.Equal(c, 1, 2)
		})
	})
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "Not equal")
}

func TestDebugOutputIsDumpedForFailures(t *testing.T) {
	var logged bytes.Buffer
	logger := &ConsoleTestLogger{Out: &logged, DebugOutputOnFailure: true}
	Run(nil, logger, func(c *Context) {
		c.Run("noisy", func(c *Context) {
			c.Debug("sent %s", "request")
			c.Errorf("wrong")
		})
	})
	assert.Contains(t, logged.String(), "DEBUG [")
	assert.Contains(t, logged.String(), "sent request")
}
