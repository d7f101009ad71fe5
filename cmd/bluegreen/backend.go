package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Godwin-T/blue-green-deployment/internal/testbackend"
	"github.com/Godwin-T/blue-green-deployment/pkg/cli"
)

var backendFlags struct {
	listen  string
	pool    string
	release string
	hangFor time.Duration
}

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run a chaos-capable development backend",
	Long: `Run a development backend that honors the backend contract: it attaches
pool and release identity headers to every response, serves /healthz, and
accepts chaos injection via POST /chaos (mode=error|hang|none).

Useful for exercising the proxy and the verification harness locally.

Example:
  bluegreen backend --listen 127.0.0.1:8081 --pool blue --release v42`,
	RunE: runBackend,
}

func init() {
	rootCmd.AddCommand(backendCmd)

	backendCmd.Flags().StringVar(&backendFlags.listen, "listen", "127.0.0.1:8081", "listen address")
	backendCmd.Flags().StringVar(&backendFlags.pool, "pool", "blue", "pool identity")
	backendCmd.Flags().StringVar(&backendFlags.release, "release", "dev", "release identity")
	backendCmd.Flags().DurationVar(&backendFlags.hangFor, "hang-for", 5*time.Second, "how long chaos mode hang stalls each request")
}

func runBackend(cmd *cobra.Command, args []string) error {
	backend := testbackend.New(backendFlags.pool, backendFlags.release)
	backend.SetHangDuration(backendFlags.hangFor)

	srv := &http.Server{
		Addr:    backendFlags.listen,
		Handler: backend.Handler(),
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("development backend listening",
			"address", backendFlags.listen,
			"pool", backendFlags.pool,
			"release", backendFlags.release,
		)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		slog.Info("development backend stopped")
		return nil
	}
}
