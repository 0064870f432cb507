package framework

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexFilters(t *testing.T) {
	var filters RegexFilters
	assert.True(t, filters.AsFilter(NewTestID("anything")))

	require.NoError(t, filters.MustMatch.Set("^/test_"))
	assert.True(t, filters.AsFilter(NewTestID("/test_route")))
	assert.False(t, filters.AsFilter(NewTestID("/login_login")))

	require.NoError(t, filters.MustNotMatch.Set("login"))
	assert.False(t, filters.AsFilter(NewTestID("/test_login")))

	assert.Error(t, filters.MustMatch.Set("("))
	assert.Equal(t, `"^/test_"`, filters.MustMatch.String())
}

func TestRegexFiltersDescribe(t *testing.T) {
	var buf bytes.Buffer
	var filters RegexFilters
	filters.Describe(&buf)
	assert.Empty(t, buf.String())

	require.NoError(t, filters.MustNotMatch.Set("slow"))
	filters.Describe(&buf)
	assert.Contains(t, buf.String(), `skip any matching "slow"`)
}

func TestLineWriterSplitsLines(t *testing.T) {
	var captured CapturingLogger
	w := LineWriter(&captured, "child: ")
	_, _ = w.Write([]byte("first\nsec"))
	_, _ = w.Write([]byte("ond\r\nthird"))

	out := captured.Output()
	require.Len(t, out, 2)
	assert.Equal(t, "child: first", out[0].Message)
	assert.Equal(t, "child: second", out[1].Message)
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := ZerologLogger(zerolog.New(&buf), zerolog.InfoLevel)
	logger.Printf("hello %s\n", "there")
	assert.JSONEq(t, `{"level":"info","message":"hello there"}`, buf.String())
}
