package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/connectors"
)

var (
	mockListen string
	mockEmpty  bool
)

var mockAdminCmd = &cobra.Command{
	Use:   "mock-admin",
	Short: "Serve an in-memory admin service for local development",
	Long: `mock-admin serves the admin routes the portal calls. By default it is seeded with
demo@ai-scaleup.com: three direct agents, a named Marketing group and a Sales group
whose assignment carries no name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mock := connectors.NewMockAdmin()
		if !mockEmpty {
			mock.DemoFixtures()
		}

		srv := &http.Server{Addr: mockListen, Handler: mock, ReadHeaderTimeout: 5 * time.Second}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			pterm.Success.Printf("Mock admin listening on %s\n", mockListen)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pterm.Info.Printf("Served %d admin call(s)\n", mock.TotalCalls())
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	mockAdminCmd.Flags().StringVar(&mockListen, "listen", ":8090", "Listen address")
	mockAdminCmd.Flags().BoolVar(&mockEmpty, "empty", false, "Start without demo fixtures")
}
