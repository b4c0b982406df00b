package audit

/*
Trail: асинхронный журнал исходов резолвинга.

- Log не блокирует прогон: событие уходит в буферизованный канал,
  при переполнении событие сбрасывается (Load Shedding) с записью в лог.
- Воркер копит пачку и пишет ее в хранилище по таймеру или при достижении лимита.
- Запись пачки ретраится с экспоненциальной задержкой; после исчерпания попыток пачка теряется.
- Stop закрывает вход и дожидается финального сброса (Drain Pattern).
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
	maxFlushDelay        = 2 * time.Second
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	WriteBatch(ctx context.Context, events []ResolutionEvent) error
}

type Auditor interface {
	Log(event ResolutionEvent)
}

// NopAuditor: для CLI и тестов, где журнал не нужен.
type NopAuditor struct{}

func (NopAuditor) Log(ResolutionEvent) {}

type Trail struct {
	ch            chan ResolutionEvent
	repo          StorageInterface
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration
	attempts      uint
	wg            sync.WaitGroup
	closed        atomic.Bool
	stopOnce      sync.Once
}

type Option func(*Trail)

func WithBatchSize(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(t *Trail) {
		if d > 0 {
			t.flushInterval = d
		}
	}
}

func WithFlushAttempts(n uint) Option {
	return func(t *Trail) {
		if n > 0 {
			t.attempts = n
		}
	}
}

func NewTrail(repo StorageInterface, logger *zap.Logger, opts ...Option) *Trail {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Trail{
		ch:            make(chan ResolutionEvent, defaultBufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "audit-trail")),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		attempts:      3,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход и ждет, пока воркер всё допишет. Повторный вызов безопасен.
func (t *Trail) Stop() {
	t.stopOnce.Do(func() {
		t.closed.Store(true)
		// крошечная пауза, чтобы текущие Log успели проскочить
		time.Sleep(10 * time.Millisecond)

		t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
		close(t.ch)
		t.wg.Wait()
		t.logger.Info("audit trail stopped gracefully")
	})
}

func (t *Trail) Log(event ResolutionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if t.closed.Load() {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("run_id", event.RunID))
		return
	}

	select {
	case t.ch <- event:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("run_id", event.RunID),
			zap.String("trace_id", event.TraceID),
			zap.String("outcome", event.Outcome),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]ResolutionEvent, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст к моменту финального сброса уже закрыт
		if err := t.write(context.Background(), batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (t *Trail) write(ctx context.Context, batch []ResolutionEvent) error {
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(t.attempts),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return min(retry.BackOffDelay(n, err, config), maxFlushDelay)
		}),
	)
	return r.Do(func() error {
		return t.repo.WriteBatch(ctx, batch)
	})
}
