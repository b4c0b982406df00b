package engine

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxResubscribeDelay = 10 * time.Second

// ReloadSignal: разобранное сообщение "<email>:<flag>". Email "*" означает всех.
type ReloadSignal struct {
	Email  string
	Reload bool
}

func (s ReloadSignal) All() bool { return s.Email == "*" }

// ParseReloadSignal разбирает по последнему ':'.
func ParseReloadSignal(payload string) (ReloadSignal, bool) {
	i := strings.LastIndex(payload, ":")
	if i <= 0 || i == len(payload)-1 {
		return ReloadSignal{}, false
	}
	email := strings.TrimSpace(payload[:i])
	flag := strings.ToLower(strings.TrimSpace(payload[i+1:]))
	if email == "" {
		return ReloadSignal{}, false
	}
	return ReloadSignal{Email: email, Reload: flag == "true" || flag == "on"}, true
}

// ListenStateResilient: "живучая" подписка на канал Redis.
// Переподключается с экспоненциальной задержкой, после каждого успешного коннекта зовет onReconnect.
func ListenStateResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onReconnect func() error,
	onMessage func(ReloadSignal),
) {
	for ctx.Err() == nil {
		pubsub, err := subscribe(ctx, rdb, logger, channel)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe, will keep trying", zap.String("chan", channel), zap.Error(err))
			continue
		}

		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				logger.Error("sync failed on reconnect", zap.Error(err))
			}
		}

		ch := pubsub.Channel()
	loop:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // канал закрыт, идем на переподключение
				}
				sig, ok := ParseReloadSignal(msg.Payload)
				if !ok {
					logger.Error("invalid signal format", zap.String("payload", msg.Payload))
					continue
				}
				onMessage(sig)
			}
		}
		_ = pubsub.Close()
	}
}

func subscribe(ctx context.Context, rdb *redis.Client, logger *zap.Logger, channel string) (*redis.PubSub, error) {
	var pubsub *redis.PubSub
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(5),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return min(retry.BackOffDelay(n, err, config), maxResubscribeDelay)
		}),
	)
	err := r.Do(func() error {
		ps := rdb.Subscribe(ctx, channel)
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			logger.Warn("subscribe attempt failed", zap.String("chan", channel), zap.Error(err))
			return err
		}
		pubsub = ps
		return nil
	})
	return pubsub, err
}
