package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/service"
)

var (
	resolveEmail string
	resolveJSON  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the agents visible to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		res, err := newResolver(logger).Resolve(ctx, resolveEmail)
		if err != nil {
			if errors.Is(err, engine.ErrNoIdentity) {
				return fmt.Errorf("--email is required")
			}
			return fmt.Errorf("failed to resolve entitlements: %w", err)
		}

		view := service.NewView(engine.State{Phase: engine.PhaseReady, Entitlements: res}, domain.DefaultCatalog)
		if resolveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		renderView(view)
		if degraded := res.DegradedGroups(); len(degraded) > 0 {
			pterm.Warning.Printf("%d group(s) shown without roster\n", len(degraded))
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveEmail, "email", "", "User email")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the portal JSON view instead of tables")
	_ = resolveCmd.MarkFlagRequired("email")
}
