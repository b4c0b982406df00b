package cmd

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the agent catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table := pterm.TableData{{"KEY", "NAME", "ROLE", "MANAGER", "HREF"}}
		for _, a := range domain.DefaultCatalog.All() {
			table = append(table, []string{string(a.Key), a.Name, a.Role, strconv.FormatBool(a.Manager), a.Href})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}
