package domain

import (
	"sort"
	"strings"
)

// AgentKey: идентификатор агента из закрытого словаря (например, "MIKE").
type AgentKey string

// ParseAgentKey приводит произвольный токен к каноничному виду (trim + upper).
// Принадлежность каталогу здесь не проверяется.
func ParseAgentKey(raw string) AgentKey {
	return AgentKey(strings.ToUpper(strings.TrimSpace(raw)))
}

// Agent: карточка агента для слоя представления.
type Agent struct {
	Key   AgentKey `json:"key"`
	Name  string   `json:"name"`  // Человекочитаемое имя ("Mike AI")
	Role  string   `json:"role"`  // Должность агента
	Image string   `json:"image"` // URL аватара
	Href  string   `json:"href"`  // Маршрут дашборда агента

	// Manager подсвечивает карточку руководителя
	Manager bool `json:"manager,omitempty"`
}

// Catalog: статический словарь известных агентов: ключ -> метаданные.
// Неизвестные ключи нигде не хранятся (см. normalize).
type Catalog struct {
	agents map[AgentKey]Agent
	order  []AgentKey
}

func NewCatalog(agents ...Agent) *Catalog {
	c := &Catalog{agents: make(map[AgentKey]Agent, len(agents))}
	for _, a := range agents {
		a.Key = ParseAgentKey(string(a.Key))
		if _, dup := c.agents[a.Key]; dup {
			continue
		}
		c.agents[a.Key] = a
		c.order = append(c.order, a.Key)
	}
	return c
}

// Has: проверка на Hot Path нормализатора
func (c *Catalog) Has(key AgentKey) bool {
	_, ok := c.agents[key]
	return ok
}

func (c *Catalog) Lookup(key AgentKey) (Agent, bool) {
	a, ok := c.agents[key]
	return a, ok
}

// All возвращает агентов в порядке объявления каталога.
func (c *Catalog) All() []Agent {
	out := make([]Agent, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.agents[k])
	}
	return out
}

// Cards превращает набор ключей в карточки в порядке каталога.
// Ключи вне каталога пропускаются.
func (c *Catalog) Cards(set AgentSet) []Agent {
	out := make([]Agent, 0, len(set))
	for _, k := range c.order {
		if set.Has(k) {
			out = append(out, c.agents[k])
		}
	}
	return out
}

func (c *Catalog) Keys() []AgentKey {
	keys := append([]AgentKey(nil), c.order...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

const imageBase = "https://www.ai-scaleup.com/wp-content/uploads/"

// DefaultCatalog: словарь агентов платформы (боевые + тестовые).
var DefaultCatalog = NewCatalog(
	Agent{Key: "ALEX", Name: "Alex AI", Role: "Cross-Platform ADs Manager", Image: imageBase + "2025/03/David-AI-Ai-Specialist-social-ads.png", Href: "/dashboard/alex-ai"},
	Agent{Key: "TONY", Name: "Tony AI", Role: "Direttore Commerciale", Image: imageBase + "2025/02/Tony-AI-strategiest.png", Href: "/dashboard/tony-ai"},
	Agent{Key: "ALADINO", Name: "Aladino AI", Role: "Creatore di nuove offerte e prodotti", Image: imageBase + "2025/02/Aladdin-AI-consultant.png", Href: "/dashboard/aladino-ai"},
	Agent{Key: "LARA", Name: "Lara AI", Role: "Social Media Manager", Image: imageBase + "2025/02/Lara-AI-social-strategiest.png", Href: "/dashboard/lara-ai"},
	Agent{Key: "SIMONE", Name: "Simone AI", Role: "SEO Copywriter", Image: imageBase + "2025/02/Simone-AI-seo-copy.png", Href: "/dashboard/simone-ai"},
	Agent{Key: "MIKE", Name: "Mike AI", Role: "Direttore Marketing", Image: imageBase + "2025/02/Mike-AI-digital-marketing-mg.png", Href: "/dashboard/mike-ai", Manager: true},
	Agent{Key: "VALENTINA", Name: "Valentina AI", Role: "SEO Optimizer", Image: imageBase + "2025/03/Valentina-AI-AI-SEO-optimizer.png", Href: "/dashboard/valentina-ai"},
	Agent{Key: "NIKO", Name: "Niko AI", Role: "SEO Manager", Image: imageBase + "2025/02/Niko-AI.png", Href: "/dashboard/niko-ai"},
	Agent{Key: "JIM", Name: "Jim AI", Role: "Coach di Vendite", Image: imageBase + "2025/02/Jim-AI-%E2%80%93-AI-Coach.png", Href: "/dashboard/jim-ai"},
	Agent{Key: "DANIELE", Name: "Daniele AI", Role: "Copywriter per Vendere (Direct Response)", Image: imageBase + "2025/11/daniele_ai_direct_response_copywriter.png", Href: "/dashboard/daniele-ai"},

	// Тестовые агенты
	Agent{Key: "TEST_MIKE", Name: "Test Mike AI", Role: "Test Direttore Marketing", Image: imageBase + "2025/02/Mike-AI-digital-marketing-mg.png", Href: "/dashboard/test-mike-ai", Manager: true},
	Agent{Key: "TEST_ALEX", Name: "Test Alex AI", Role: "Test Cross-Platform ADs Manager", Image: imageBase + "2025/03/David-AI-Ai-Specialist-social-ads.png", Href: "/dashboard/test-alex-ai"},
	Agent{Key: "TEST_TONY", Name: "Test Tony AI", Role: "Test Direttore Commerciale", Image: imageBase + "2025/02/Tony-AI-strategiest.png", Href: "/dashboard/test-tony-ai"},
	Agent{Key: "TEST_JIM", Name: "Test Jim AI", Role: "Test Coach di Vendite", Image: imageBase + "2025/02/Jim-AI-%E2%80%93-AI-Coach.png", Href: "/dashboard/test-jim-ai"},
	Agent{Key: "TEST_LARA", Name: "Test Lara AI", Role: "Test Social Media Manager", Image: imageBase + "2025/02/Lara-AI-social-strategiest.png", Href: "/dashboard/test-lara-ai"},
	Agent{Key: "TEST_VALENTINA", Name: "Test Valentina AI", Role: "Test SEO Optimizer", Image: imageBase + "2025/03/Valentina-AI-AI-SEO-optimizer.png", Href: "/dashboard/test-valentina-ai"},
	Agent{Key: "TEST_DANIELE", Name: "Test Daniele AI", Role: "Test Copywriter per Vendere (Direct Response)", Image: imageBase + "2025/11/daniele_ai_direct_response_copywriter.png", Href: "/dashboard/test-daniele-ai"},
	Agent{Key: "TEST_SIMONE", Name: "Test Simone AI", Role: "Test SEO Copywriter", Image: imageBase + "2025/02/Simone-AI-seo-copy.png", Href: "/dashboard/test-simone-ai"},
	Agent{Key: "TEST_NIKO", Name: "Test Niko AI", Role: "Test SEO Manager", Image: imageBase + "2025/02/Niko-AI.png", Href: "/dashboard/test-niko-ai"},
	Agent{Key: "TEST_ALADINO", Name: "Test Aladino AI", Role: "Test Creatore di nuove offerte e prodotti", Image: imageBase + "2025/02/Aladdin-AI-consultant.png", Href: "/dashboard/test-aladino-ai"},
)
