// Package bootstrap собирает инфраструктуру и сервисы по конфигу.
// Общий для API, планировщика и talepifyctl.
//
// storage_driver=postgres использует PostgreSQL, memory хранит всё в процессе.
// Если задан адрес redis, в нём живут kvstore, кеш подписок и блокировки,
// иначе используются реализации в памяти. Если задан url RabbitMQ,
// уведомления публикуются в брокер, иначе только пишутся в лог.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/talepify/entitlement-service/internal/cache"
	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/kvstore"
	"github.com/talepify/entitlement-service/internal/lib/lock"
	"github.com/talepify/entitlement-service/internal/lib/rabbitmq"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/metrics"
	"github.com/talepify/entitlement-service/internal/migrations"
	"github.com/talepify/entitlement-service/internal/models"
	"github.com/talepify/entitlement-service/internal/notify"
	"github.com/talepify/entitlement-service/internal/services/referral"
	"github.com/talepify/entitlement-service/internal/services/subscription"
	"github.com/talepify/entitlement-service/internal/services/trial"
	"github.com/talepify/entitlement-service/internal/storage/memory"
	"github.com/talepify/entitlement-service/internal/storage/repository"
)

const lockTTL = 10 * time.Second

// Repository хранилище подписок и реферальных записей.
type Repository interface {
	subscription.Repository
	referral.Repository
}

// Pinger проверка доступности зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options что поднимать помимо хранилища.
type Options struct {
	// Migrate применяет миграции при старте. Только для postgres.
	Migrate bool
	// WaitForSchema ждёт, пока миграции применит другой процесс.
	WaitForSchema bool
	// Broker подключает RabbitMQ, если задан url.
	Broker bool
}

// Infra подключения и адаптеры хранилищ.
type Infra struct {
	Repo       Repository
	Store      kvstore.Store
	Locker     lock.Locker
	Cache      subscription.Cache
	Dispatcher notify.Dispatcher
	Pingers    map[string]Pinger

	log     *slog.Logger
	closers []func() error
}

// Setup поднимает инфраструктуру. При ошибке уже открытые ресурсы закрываются.
func Setup(ctx context.Context, cfg *config.Config, opts Options, log *slog.Logger, m *metrics.Metrics) (*Infra, error) {
	const op = "bootstrap.Setup"
	in := &Infra{Pingers: make(map[string]Pinger), log: log}

	if err := in.setupStorage(ctx, cfg, opts); err != nil {
		in.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := in.setupRedis(ctx, cfg); err != nil {
		in.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := in.setupBroker(ctx, cfg, opts, m); err != nil {
		in.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return in, nil
}

func (in *Infra) setupStorage(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg.StorageDriver == config.StorageDriverMemory {
		in.log.Warn("using in-memory storage, data is lost on restart")
		in.Repo = memory.New()
		return nil
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, db.Close)
	in.Repo = db
	in.Pingers["postgres"] = db

	if opts.Migrate {
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			return err
		}
	}
	if opts.WaitForSchema {
		return waitForSchema(ctx, db, in.log)
	}
	return nil
}

// waitForSchema ждёт схему, пока её не создаст API при старте.
func waitForSchema(ctx context.Context, db *repository.Storage, log *slog.Logger) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(3*time.Second), 10), ctx)
	return backoff.RetryNotify(func() error {
		return db.CheckDatabaseReady(ctx)
	}, policy, func(err error, next time.Duration) {
		log.Info("database is not ready", sl.Err(err), slog.Duration("retry_in", next))
	})
}

func (in *Infra) setupRedis(ctx context.Context, cfg *config.Config) error {
	if cfg.AddressRedis == "" {
		in.Store = kvstore.NewMemory()
		in.Locker = lock.NewMemory()
		in.Cache = cache.Noop{}
		return nil
	}

	client, err := cache.NewClient(ctx, cfg.RedisConnection)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, client.Close)
	in.Store = kvstore.NewRedis(client)
	in.Locker = lock.NewRedis(client, lockTTL)
	in.Cache = cache.New(client)
	in.Pingers["redis"] = redisPinger(client)
	return nil
}

func redisPinger(client *redis.Client) Pinger {
	return pingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func (in *Infra) setupBroker(ctx context.Context, cfg *config.Config, opts Options, m *metrics.Metrics) error {
	if !opts.Broker || cfg.RabbitMQURL == "" {
		in.Dispatcher = notify.NewLogDispatcher(in.log)
		return nil
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, conn.Close)

	queues := rabbitmq.NotificationQueues(models.ChannelReferral, models.ChannelSubscription, models.ChannelTrial)
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, ch.Close)
	in.Dispatcher = notify.NewAMQPDispatcher(ch, notify.DefaultBreakerSettings, in.log, m)
	in.Pingers["rabbitmq"] = amqpPinger(conn)
	return nil
}

func amqpPinger(conn *amqp.Connection) Pinger {
	return pingFunc(func(context.Context) error {
		if conn.IsClosed() {
			return errors.New("amqp connection is closed")
		}
		return nil
	})
}

// Close закрывает ресурсы в обратном порядке.
func (in *Infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil {
			in.log.Error("failed to close resource", sl.Err(err))
		}
	}
	in.closers = nil
}

// Services доменные сервисы поверх инфраструктуры.
type Services struct {
	Trial        *trial.Service
	Subscription *subscription.Service
	Referral     *referral.Service
	Translator   *i18n.Translator
}

// NewServices собирает сервисы. Подписки служат источником бонусных дней для рефералов
// и подтверждают покупку приглашённого. Уведомления пригласившему идут через Deduper.
func (in *Infra) NewServices(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*Services, error) {
	const op = "bootstrap.NewServices"
	tr, err := i18n.New(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	subs := subscription.New(in.Repo, in.Cache, in.Locker, subscription.Options{
		RenewalMode: cfg.RenewalMode,
		CacheTTL:    cfg.CacheTTL,
	}, log, m)

	notifier := notify.NewDeduper(in.Store, in.Dispatcher, log)
	refs := referral.New(in.Repo, subs, subs, notifier, tr, referral.Options{
		RewardDays:   cfg.RewardDays,
		PendingTTL:   cfg.PendingTTL,
		GrantRetries: cfg.GrantRetries,
		Locale:       cfg.Locale,
	}, log, m)

	return &Services{
		Trial:        trial.New(in.Store, in.Locker, cfg.TrialDays, log, m),
		Subscription: subs,
		Referral:     refs,
		Translator:   tr,
	}, nil
}
