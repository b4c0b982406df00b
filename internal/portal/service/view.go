package service

import (
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
)

// GroupView: секция дашборда для одной группы.
type GroupView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Degraded    bool           `json:"degraded"`
	Agents      []domain.Agent `json:"agents"`
}

// EntitlementsView: то, что рендерит дашборд: карточки из каталога,
// разложенные на "Direct Agents" и секции групп.
type EntitlementsView struct {
	State      engine.Phase   `json:"state"`
	Reason     string         `json:"reason,omitempty"`
	Generation uint64         `json:"generation"`
	DirectOnly []domain.Agent `json:"direct_only"`
	Groups     []GroupView    `json:"groups"`
}

// NewView проецирует состояние на каталог. Ключи без карточки не попадут в вывод.
func NewView(s engine.State, catalog *domain.Catalog) EntitlementsView {
	v := EntitlementsView{
		State:      s.Phase,
		Reason:     s.Reason,
		Generation: s.Generation,
		DirectOnly: []domain.Agent{},
		Groups:     []GroupView{},
	}
	if s.Phase != engine.PhaseReady || s.Entitlements == nil {
		return v
	}

	v.DirectOnly = catalog.Cards(s.Entitlements.DirectOnly)
	for _, g := range s.Entitlements.Groups {
		v.Groups = append(v.Groups, GroupView{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Degraded:    g.Degraded,
			Agents:      catalog.Cards(g.Agents),
		})
	}
	return v
}
