package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Имена эндпоинтов admin-сервиса: метки метрик и ключи Circuit Breaker-ов.
const (
	EndpointDirectAgents         = "direct_agents"
	EndpointDirectAgentsFallback = "direct_agents_fallback"
	EndpointGroupAssignments     = "group_assignments"
	EndpointGroupAgents          = "group_agents"
)

// Endpoints: все эндпоинты, которые трогает один прогон резолвинга.
var Endpoints = []string{
	EndpointDirectAgents,
	EndpointDirectAgentsFallback,
	EndpointGroupAssignments,
	EndpointGroupAgents,
}

const maxBodyBytes = 1 << 20

// Getter: минимальный транспорт: GET по пути относительно admin-сервиса.
// Реализуется HTTPAdapter-ом и декоратором надежности из engine.
type Getter interface {
	Get(ctx context.Context, endpoint, path string) ([]byte, error)
}

type HTTPAdapter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAdapter создает адаптер к admin-сервису
func NewHTTPAdapter(baseURL string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Get реализует интерфейс Getter
func (a *HTTPAdapter) Get(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("admin api %s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	// Ответы admin-сервиса не кэшируем нигде по пути
	req.Header.Set("Cache-Control", "no-store")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("admin api %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("admin api %s: read body: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
