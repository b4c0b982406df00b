package handler

import (
	"net/http"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

type CatalogProvider interface {
	Catalog() *domain.Catalog
}

type CatalogHandler struct {
	provider CatalogProvider
}

func NewCatalogHandler(p CatalogProvider) *CatalogHandler {
	return &CatalogHandler{provider: p}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Catalog().All())
}
