package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/service"
)

var (
	watchEmail       string
	watchReloadEvery time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the entitlement state of a user session",
	Long: `watch opens a session the way the dashboard does and prints every state
transition. With --reload-every the session is reloaded periodically; Ctrl+C ends it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := engine.NewStateMachine(ctx, newResolver(logger), logger)
		defer m.Close()

		states, unsubscribe := m.Subscribe()
		defer unsubscribe()
		m.SetIdentity(watchEmail)

		var tick <-chan time.Time
		if watchReloadEvery > 0 {
			ticker := time.NewTicker(watchReloadEvery)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				pterm.Info.Println("Session closed.")
				return nil
			case <-tick:
				m.Reload()
			case s, ok := <-states:
				if !ok {
					return nil
				}
				printState(s)
			}
		}
	},
}

func printState(s engine.State) {
	switch s.Phase {
	case engine.PhaseIdle:
		pterm.Info.Printf("[gen %d] idle: %s\n", s.Generation, s.Reason)
	case engine.PhaseLoading:
		pterm.Info.Printf("[gen %d] loading agents for %s...\n", s.Generation, s.Email)
	case engine.PhaseFailed:
		pterm.Error.Printf("[gen %d] %s (%v)\n", s.Generation, s.Reason, s.Err)
	case engine.PhaseReady:
		pterm.Success.Printf("[gen %d] ready: %d direct-only agent(s), %d group(s)\n",
			s.Generation, s.Entitlements.DirectOnly.Len(), len(s.Entitlements.Groups))
		renderView(service.NewView(s, domain.DefaultCatalog))
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchEmail, "email", "", "User email")
	watchCmd.Flags().DurationVar(&watchReloadEvery, "reload-every", 0, "Reload the session periodically (0 disables)")
	_ = watchCmd.MarkFlagRequired("email")
}
