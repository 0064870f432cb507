package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/henryotoole/hutils/framework"
	"github.com/henryotoole/hutils/testserver"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	var filters framework.RegexFilters
	var spawn bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run route test blocks against a web application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := v.GetString("url")
			if baseURL == "" {
				return errors.New("--url is required")
			}
			blocksFile := v.GetString("blocks")
			if blocksFile == "" {
				return errors.New("--blocks is required")
			}
			blocks, err := testserver.LoadBlocks(blocksFile)
			if err != nil {
				return err
			}

			if spawn {
				server, err := spawnSampleApp(cmd, baseURL)
				if err != nil {
					return err
				}
				defer server.Stop()
			}

			client := testserver.NewClient(baseURL,
				testserver.WithRequestTimeout(durationSetting(v, "timeout")),
				testserver.WithLogger(debugLogger("client")),
			)
			defer client.Close()
			if email := v.GetString("login.email"); email != "" {
				if err := client.LoginUser(v.GetString("login.route"), email, v.GetString("login.password")); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			filters.Describe(out)
			fmt.Fprintln(out, "Running route test blocks")
			testLogger := &framework.ConsoleTestLogger{
				Out:                  out,
				DebugOutputOnFailure: v.GetBool("debug"),
			}
			results := testserver.RunBlocks(client, blocks, filters.AsFilter, testLogger)

			fmt.Fprintln(out)
			framework.PrintResults(out, results)
			if !results.OK() {
				return errTestsFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("url", "", "base URL of the application under test")
	flags.String("blocks", "", "YAML file of route test blocks")
	flags.Duration("timeout", testserver.DefaultRequestTimeout, "timeout for each request")
	flags.String("login-route", "/login", "route to post login credentials to")
	flags.String("email", "", "log in with this email before running the blocks")
	flags.String("password", "", "password to log in with")
	flags.Var(&filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	flags.Var(&filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	flags.BoolVar(&spawn, "spawn", false, "start the sample app as a child process at --url first")

	for key, flag := range map[string]string{
		"url":            "url",
		"blocks":         "blocks",
		"timeout":        "timeout",
		"login.route":    "login-route",
		"login.email":    "email",
		"login.password": "password",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

// spawnSampleApp starts this executable's sample-app command as a child process serving at
// the host and port of baseURL.
func spawnSampleApp(cmd *cobra.Command, baseURL string) (*testserver.Server, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid --url %q", baseURL)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	server := testserver.NewServer(debugLogger("dev-server"))
	if err := server.StartCommand(cmd.Context(), baseURL, exe, "sample-app", "--addr", u.Host); err != nil {
		_ = server.Stop()
		return nil, err
	}
	return server, nil
}
