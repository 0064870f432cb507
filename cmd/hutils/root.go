package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/henryotoole/hutils/framework"
	"github.com/henryotoole/hutils/testserver"
)

// newSettings returns the viper instance shared by all commands. Flags are bound to it per
// command; values can also come from a settings file or HUTILS_* environment variables.
func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HUTILS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("timeout", testserver.DefaultRequestTimeout)
	v.SetDefault("addr", "localhost:5000")
	return v
}

func newRootCmd() *cobra.Command {
	v := newSettings()
	var settingsFile string

	root := &cobra.Command{
		Use:           "hutils",
		Short:         "Web application test helpers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if settingsFile != "" {
				v.SetConfigFile(settingsFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("error reading settings: %w", err)
				}
			}
			if v.GetBool("debug") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (YAML, JSON or TOML)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))

	root.AddCommand(
		newSampleAppCmd(v),
		newConfigCmd(),
		newCheckCmd(v),
		newSelfTestCmd(),
	)
	return root
}

// debugLogger is the framework.Logger used for harness internals.
func debugLogger(component string) framework.Logger {
	return framework.ZerologLogger(log.With().Str("component", component).Logger(), zerolog.DebugLevel)
}

func durationSetting(v *viper.Viper, key string) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		return testserver.DefaultRequestTimeout
	}
	return d
}
