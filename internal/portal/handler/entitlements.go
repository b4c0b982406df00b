package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"github.com/xela07ax/spaceai-agent-portal/internal/infra/auth"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/service"
	"go.uber.org/zap"
)

const keepAliveInterval = 15 * time.Second

// PortalService Описываем, что нам нужно от сервиса
type PortalService interface {
	Entitlements(ctx context.Context, email string) (service.EntitlementsView, error)
	Reload(email string) int
	Catalog() *domain.Catalog
}

type SessionOpener interface {
	Open(ctx context.Context, email string) *service.Session
}

type EntitlementsHandler struct {
	service  PortalService
	sessions SessionOpener
	logger   *zap.Logger
}

func NewEntitlementsHandler(s PortalService, sessions SessionOpener, logger *zap.Logger) *EntitlementsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntitlementsHandler{service: s, sessions: sessions, logger: logger.Named("entitlements-handler")}
}

// Get: разовый резолвинг для загрузки страницы. 502, если admin-сервис не ответил.
func (h *EntitlementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Entitlements(r.Context(), auth.EmailFrom(r.Context()))
	if err != nil {
		// клиент ушел, отвечать некому
		if errors.Is(err, context.Canceled) {
			return
		}
		http.Error(w, "resolution timed out", http.StatusGatewayTimeout)
		return
	}

	status := http.StatusOK
	if view.State == engine.PhaseFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, view)
}

// Stream отдает каждое состояние сессии как SSE `event: state`. Разрыв соединения отменяет прогон.
func (h *EntitlementsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	_, _ = fmt.Fprint(w, ":ok\n\n")
	flusher.Flush()

	session := h.sessions.Open(r.Context(), auth.EmailFrom(r.Context()))
	defer session.Close()

	ch, unsubscribe := session.Machine.Subscribe()
	defer unsubscribe()

	catalog := h.service.Catalog()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ":keep-alive\n\n")
			flusher.Flush()
		case st, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(service.NewView(st, catalog))
			if err != nil {
				h.logger.Error("failed to encode state", zap.Error(err))
				continue
			}
			_, _ = fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type reloadResponse struct {
	Sessions int `json:"sessions"`
}

// Reload перезапускает прогоны во всех живых сессиях вызывающего.
func (h *EntitlementsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	email := auth.EmailFrom(r.Context())
	if email == "" {
		http.Error(w, "sign-in required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusAccepted, reloadResponse{Sessions: h.service.Reload(email)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
