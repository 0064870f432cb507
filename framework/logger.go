package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the minimal logging interface used throughout hutils. *log.Logger satisfies it.
type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

// NullLogger returns a Logger that discards everything.
func NullLogger() Logger { return nullLogger{} }

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger accumulates messages in memory so that they can be shown later, for
// instance only when a test fails.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append(CapturedOutput(nil), l.output...)
	l.lock.Unlock()
	return ret
}

func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}

type zerologLogger struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface. Every Printf call becomes
// one event at the given level.
func ZerologLogger(logger zerolog.Logger, level zerolog.Level) Logger {
	return zerologLogger{logger: logger, level: level}
}

func (z zerologLogger) Printf(message string, args ...interface{}) {
	z.logger.WithLevel(z.level).Msg(strings.TrimRight(fmt.Sprintf(message, args...), "\n"))
}

// LineWriter returns an io.Writer that sends each complete line written to it to the
// logger, with the given prefix. It is used to forward the output of child processes.
func LineWriter(logger Logger, prefix string) io.Writer {
	return &lineWriter{logger: logger, prefix: prefix}
}

type lineWriter struct {
	logger  Logger
	prefix  string
	pending []byte
	lock    sync.Mutex
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.pending = append(w.pending, p...)
	for {
		i := strings.IndexByte(string(w.pending), '\n')
		if i < 0 {
			break
		}
		w.logger.Printf("%s%s", w.prefix, strings.TrimRight(string(w.pending[:i]), "\r"))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}
