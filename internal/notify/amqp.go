package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/talepify/entitlement-service/internal/lib/rabbitmq"
	"github.com/talepify/entitlement-service/internal/metrics"
	"github.com/talepify/entitlement-service/internal/models"
)

// BreakerSettings параметры предохранителя публикации.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerSettings размыкает цепь после пяти ошибок подряд на 30 секунд.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests:      1,
	Interval:         time.Minute,
	Timeout:          30 * time.Second,
	FailureThreshold: 5,
}

// AMQPDispatcher публикует уведомления в обменник notifications.
// Ключ маршрутизации равен каналу уведомления.
type AMQPDispatcher struct {
	mu      sync.Mutex // amqp.Channel не допускает параллельный Publish
	ch      rabbitmq.Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewAMQPDispatcher создаёт диспетчер поверх открытого канала.
func NewAMQPDispatcher(ch rabbitmq.Publisher, settings BreakerSettings, log *slog.Logger, m *metrics.Metrics) *AMQPDispatcher {
	d := &AMQPDispatcher{ch: ch, log: log, metrics: m}
	d.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "amqp-notifications",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return d
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	const op = "notify.AMQPDispatcher.Dispatch"
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := d.breaker.Execute(func() (struct{}, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		return struct{}{}, rabbitmq.PublishMessage(d.ch, rabbitmq.ExchangeNotifications, n.Channel, n)
	})
	d.metrics.Notification(n.Channel, metrics.Result(err, false))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// State текущее состояние предохранителя.
func (d *AMQPDispatcher) State() gobreaker.State {
	return d.breaker.State()
}
