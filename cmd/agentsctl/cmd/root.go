package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/connectors"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"github.com/xela07ax/spaceai-agent-portal/internal/infra"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
	"go.uber.org/zap"
)

var (
	adminURL string
	timeout  time.Duration
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "agentsctl",
	Short: "Inspect which AI agents a user can see",
	Long: `agentsctl resolves agent entitlements against the admin service the same way
the portal does: direct assignments, group rosters and reconciliation.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("ADMIN_BASE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8090"
	}
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", defaultURL, "Admin service base URL (also ADMIN_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for a single resolution run")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(resolveCmd, catalogCmd, watchCmd, mockAdminCmd, migrateCmd, tokenCmd)
}

func newLogger() (*zap.Logger, error) {
	return infra.NewLogger(infra.LoggerConfig{Level: logLevel, Format: "console"})
}

// newResolver собирает тот же конвейер, что и портал, но без журнала и метрик наружу.
func newResolver(logger *zap.Logger) *engine.Resolver {
	metrics := engine.NewMetrics(nil)
	norm := normalize.New(domain.DefaultCatalog, logger, metrics)

	settings := engine.DefaultReliabilitySettings()
	settings.RequestTimeout = timeout
	getter := engine.NewReliabilityWrapper(connectors.NewHTTPAdapter(adminURL, nil), settings, metrics, logger)

	api := connectors.NewAdminAPI(getter, connectors.DefaultRoutes(), norm, logger)
	return engine.NewResolver(api, norm, nil, metrics, logger)
}
