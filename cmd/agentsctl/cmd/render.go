package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/service"
)

func renderCards(cards []domain.Agent) {
	if len(cards) == 0 {
		pterm.Info.Println("No agents.")
		return
	}
	table := pterm.TableData{{"KEY", "NAME", "ROLE"}}
	for _, c := range cards {
		name := c.Name
		if c.Manager {
			name += " *"
		}
		table = append(table, []string{string(c.Key), name, c.Role})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func renderView(v service.EntitlementsView) {
	pterm.DefaultSection.Println("Direct Agents")
	renderCards(v.DirectOnly)

	for _, g := range v.Groups {
		title := fmt.Sprintf("Group: %s", g.Name)
		pterm.DefaultSection.Println(title)
		if g.Description != "" {
			pterm.Println(g.Description)
		}
		if g.Degraded {
			pterm.Warning.Printf("Roster for %s is unavailable right now.\n", g.ID)
			continue
		}
		renderCards(g.Agents)
	}
}
