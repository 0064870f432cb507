package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/henryotoole/hutils/sampleapp"
	"github.com/henryotoole/hutils/web"
)

func newSampleAppCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample-app",
		Short: "Serve the sample application used to exercise the test harness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret []byte
			if s := v.GetString("secret-key"); s != "" {
				secret = []byte(s)
			}
			app := sampleapp.New(secret, debugLogger("sample-app"))
			return serveUntilSignalled(v.GetString("addr"), web.NoCache(app))
		},
	}
	cmd.Flags().String("addr", "localhost:5000", "address to listen on")
	cmd.Flags().String("secret-key", "", "key used to sign session cookies")
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("secret-key", cmd.Flags().Lookup("secret-key"))
	return cmd
}

func serveUntilSignalled(addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("Sample app listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
