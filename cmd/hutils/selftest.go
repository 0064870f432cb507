package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/henryotoole/hutils/config"
	"github.com/henryotoole/hutils/db"
	"github.com/henryotoole/hutils/framework"
	"github.com/henryotoole/hutils/registry"
	"github.com/henryotoole/hutils/sampleapp"
	"github.com/henryotoole/hutils/testserver"
	"github.com/henryotoole/hutils/web"
)

func init() {
	registry.Register("testserver", "Client", checkSampleAppRoutes)
	registry.Register("config", "Load", checkConfigLoad)
	registry.Register("db", "Database", checkSQLiteMemory)
}

func newSelfTestCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the built-in checks of this installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry.Default.Out = cmd.OutOrStdout()
			var results = registry.TestAll
			if module != "" {
				results = func() framework.Results { return registry.TestModule(module) }
			}
			if !results().OK() {
				return errTestsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "only run checks for this module")
	return cmd
}

// reportError prints a check's error under its banner in the selftest output.
func reportError(err error) {
	fmt.Fprintln(registry.Default.Output(), err)
}

// checkSampleAppRoutes serves the sample app in-process and checks its routes with a client.
func checkSampleAppRoutes() bool {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		reportError(err)
		return false
	}
	addr := l.Addr().String()
	l.Close()

	server := testserver.NewServer(debugLogger("dev-server"))
	if err := server.StartHandler(web.NoCache(sampleapp.New(nil, nil)), addr, "http://"+addr); err != nil {
		reportError(err)
		return false
	}
	defer server.Stop()

	client := testserver.NewClient(server.BaseURL())
	defer client.Close()
	if err := client.LoginUser("/login_login", sampleapp.UserEmail, sampleapp.UserPass); err != nil {
		reportError(err)
		return false
	}
	for _, block := range []testserver.RouteTestBlock{
		{Route: "/test_route", DesiredCode: 200, DesiredData: map[string]interface{}{"key": "val"},
			RequestData: testserver.Params{"test_param": "hello"}},
		{Route: "/test_route", DesiredCode: 404, RequestData: testserver.Params{"test_param": "bye"}},
		{Route: "/test_login", DesiredCode: 200, DesiredData: map[string]interface{}{}},
	} {
		if err := client.AssertBlock(block); err != nil {
			reportError(err)
			return false
		}
	}
	return true
}

func checkConfigLoad() bool {
	dir, err := os.MkdirTemp("", "hutils-selftest")
	if err != nil {
		reportError(err)
		return false
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("PORT: 5000\nlower: 1\n"), 0o600); err != nil {
		reportError(err)
		return false
	}
	cfg, err := config.Load(path)
	if err != nil {
		reportError(err)
		return false
	}
	_, hasLower := cfg["lower"]
	return cfg["PORT"] == 5000 && !hasLower
}

func checkSQLiteMemory() bool {
	d, err := db.Open("sqlite://:memory:")
	if err != nil {
		reportError(err)
		return false
	}
	defer d.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err := d.Ping(ctx); err != nil {
		reportError(err)
		return false
	}
	return true
}
