package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/spaceai-agent-portal/internal/connectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReliabilitySettings: параметры защиты исходящих вызовов к admin-сервису.
type ReliabilitySettings struct {
	RequestTimeout time.Duration
	RateLimit      float64 // запросов в секунду; <= 0 отключает лимит
	RateBurst      int

	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32
}

func DefaultReliabilitySettings() ReliabilitySettings {
	return ReliabilitySettings{
		RequestTimeout:     5 * time.Second,
		RateLimit:          100,
		RateBurst:          20,
		CBMaxRequests:      3,
		CBInterval:         5 * time.Second,
		CBTimeout:          30 * time.Second,
		CBFailureThreshold: 5,
	}
}

// ReliabilityWrapper декорирует connectors.Getter: Rate Limiter + Circuit Breaker + таймаут.
// Breaker-ы identity-вызовов общие на эндпоинт, roster-ы групп получают breaker на группу:
// сломанная группа не должна отрезать соседние.
// Ретраев здесь нет: каждый путь admin-сервиса пробуется ровно один раз за прогон.
type ReliabilityWrapper struct {
	next     connectors.Getter
	settings ReliabilitySettings
	limiter  *rate.Limiter
	metrics  *Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewReliabilityWrapper(next connectors.Getter, s ReliabilitySettings, metrics *Metrics, logger *zap.Logger) *ReliabilityWrapper {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if s.RateLimit > 0 {
		limit = rate.Limit(s.RateLimit)
	}
	burst := s.RateBurst
	if burst <= 0 {
		burst = 1
	}

	w := &ReliabilityWrapper{
		next:     next,
		settings: s,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  metrics,
		logger:   logger.Named("reliability"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, e := range connectors.Endpoints {
		if e != connectors.EndpointGroupAgents {
			w.breaker(e, "")
		}
	}
	return w
}

// breakerKey: путь roster-а однозначно задает группу.
func breakerKey(endpoint, path string) string {
	if endpoint == connectors.EndpointGroupAgents {
		return endpoint + ":" + path
	}
	return endpoint
}

func (w *ReliabilityWrapper) breaker(endpoint, path string) *gobreaker.CircuitBreaker {
	key := breakerKey(endpoint, path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if cb, ok := w.breakers[key]; ok {
		return cb
	}

	perGroup := key != endpoint
	threshold := w.settings.CBFailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "admin-" + key,
		MaxRequests: w.settings.CBMaxRequests,
		Interval:    w.settings.CBInterval,
		Timeout:     w.settings.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > threshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if perGroup {
				switch {
				case to == gobreaker.StateOpen:
					w.metrics.OpenGroupBreakers.Inc()
				case from == gobreaker.StateOpen:
					w.metrics.OpenGroupBreakers.Dec()
				}
			} else {
				w.metrics.CircuitBreakerState.WithLabelValues(endpoint).Set(breakerGauge(to))
			}
			w.logger.Warn("circuit breaker state changed",
				zap.String("breaker", key),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	if !perGroup {
		w.metrics.CircuitBreakerState.WithLabelValues(endpoint).Set(0)
	}
	w.breakers[key] = cb
	return cb
}

// isBreakerSuccess: отмена прогона и 4xx (группа не найдена и т.п.) не являются отказом upstream-а.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	code := connectors.StatusCode(err)
	return code >= 400 && code < 500 && code != 429
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}

// Get реализует connectors.Getter
func (w *ReliabilityWrapper) Get(ctx context.Context, endpoint, path string) ([]byte, error) {
	// 1. Rate Limiter (ждет, но уважает отмену прогона)
	if err := w.limiter.Wait(ctx); err != nil {
		w.metrics.UpstreamRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// 2. Circuit Breaker
	res, err := w.breaker(endpoint, path).Execute(func() (interface{}, error) {
		callCtx := ctx
		if w.settings.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, w.settings.RequestTimeout)
			defer cancel()
		}
		return w.next.Get(callCtx, endpoint, path)
	})

	w.metrics.UpstreamRequests.WithLabelValues(endpoint, statusLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if code := connectors.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	return "error"
}
