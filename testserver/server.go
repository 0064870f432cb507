package testserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alessio/shellescape"

	"github.com/henryotoole/hutils/framework"
)

// DefaultStartupDelay is how long Start methods block after launching the application.
const DefaultStartupDelay = time.Millisecond * 500

const shutdownTimeout = time.Second * 5

// Server runs the application under test in the background. It is not running until one of
// the Start methods is called.
type Server struct {
	// StartupDelay overrides DefaultStartupDelay when nonzero.
	StartupDelay time.Duration

	// Output receives the standard output and standard error of a child process. If nil,
	// each line is sent to the server's logger instead.
	Output io.Writer

	// Env holds extra "KEY=value" entries for a child process's environment, which otherwise
	// is inherited from this process.
	Env []string

	baseURL    string
	cmd        *exec.Cmd
	httpServer *http.Server
	done       chan error
	logger     framework.Logger
	lock       sync.Mutex
}

// NewServer creates an idle Server.
func NewServer(logger framework.Logger) *Server {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Server{logger: logger}
}

// BaseURL returns the URL given when the server was started.
func (s *Server) BaseURL() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.baseURL
}

// StartHandler serves handler on addr (such as "localhost:5000") from a background goroutine.
// baseURL is recorded for clients, for instance "http://localhost:5000".
func (s *Server) StartHandler(handler http.Handler, addr, baseURL string) error {
	s.lock.Lock()
	if s.cmd != nil || s.httpServer != nil {
		s.lock.Unlock()
		return errors.New("dev server is already running")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.lock.Unlock()
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}
	server := &http.Server{Handler: handler}
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(listener)
	}()
	s.httpServer = server
	s.done = done
	s.baseURL = baseURL
	s.lock.Unlock()

	s.logger.Printf("Started dev server handler on %s", listener.Addr())
	return s.waitStartup(done)
}

// StartCommand runs the application as a child process. The process is killed if ctx is
// cancelled before Stop is called.
func (s *Server) StartCommand(ctx context.Context, baseURL string, name string, args ...string) error {
	s.lock.Lock()
	if s.cmd != nil || s.httpServer != nil {
		s.lock.Unlock()
		return errors.New("dev server is already running")
	}
	cmd := exec.CommandContext(ctx, name, args...)
	output := s.Output
	if output == nil {
		output = framework.LineWriter(s.logger, "dev server: ")
	}
	cmd.Stdout = output
	cmd.Stderr = output
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	var cmdLine commandBuilder
	cmdLine.add(name)
	cmdLine.add(args...)
	s.logger.Printf("Starting dev server: %s", cmdLine)

	if err := cmd.Start(); err != nil {
		s.lock.Unlock()
		return fmt.Errorf("could not start dev server: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	s.cmd = cmd
	s.done = done
	s.baseURL = baseURL
	s.lock.Unlock()

	return s.waitStartup(done)
}

func (s *Server) waitStartup(done chan error) error {
	delay := s.StartupDelay
	if delay == 0 {
		delay = DefaultStartupDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case err := <-done:
		done <- err // leave it for Stop
		if err == nil {
			err = errors.New("exited with no error")
		}
		return fmt.Errorf("dev server stopped during startup: %w", err)
	}
}

// Stop terminates the application and waits for it to exit. It does nothing if the server
// is not running.
func (s *Server) Stop() error {
	s.lock.Lock()
	cmd, server, done := s.cmd, s.httpServer, s.done
	s.cmd, s.httpServer, s.done = nil, nil, nil
	s.lock.Unlock()

	switch {
	case cmd != nil:
		if err := terminate(cmd.Process); err != nil {
			return fmt.Errorf("could not stop dev server: %w", err)
		}
		err := <-done
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return err
		}
		s.logger.Printf("Dev server process exited")
	case server != nil:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not stop dev server: %w", err)
		}
		if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.logger.Printf("Dev server handler stopped")
	}
	return nil
}

// terminate asks the process to exit, falling back to killing it on platforms where
// SIGTERM cannot be sent.
func terminate(p *os.Process) error {
	err := p.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
