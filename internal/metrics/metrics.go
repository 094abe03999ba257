// Package metrics содержит prometheus-метрики пробных периодов, подписок,
// реферальной программы и уведомлений.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для меток.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics набор счётчиков сервиса. Нулевой указатель допустим и ничего не пишет.
type Metrics struct {
	trialOperations        *prometheus.CounterVec
	subscriptionOperations *prometheus.CounterVec
	referralOperations     *prometheus.CounterVec
	rewardDaysGranted      prometheus.Counter
	notifications          *prometheus.CounterVec
}

// New регистрирует метрики в registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		trialOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trial_operations_total",
				Help: "Trial operations by name and result",
			},
			[]string{"operation", "result"},
		),
		subscriptionOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_operations_total",
				Help: "Subscription operations by name and result",
			},
			[]string{"operation", "result"},
		),
		referralOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_operations_total",
				Help: "Referral operations by name and result",
			},
			[]string{"operation", "result"},
		),
		rewardDaysGranted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "referral_reward_days_granted_total",
				Help: "Subscription days granted as referral rewards",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_dispatched_total",
				Help: "Notifications by channel and result",
			},
			[]string{"channel", "result"},
		),
	}
}

// Result переводит ошибку операции в метку. Ожидаемые отказы передаются через rejected.
func Result(err error, rejected bool) string {
	switch {
	case err == nil:
		return ResultOK
	case rejected:
		return ResultRejected
	default:
		return ResultError
	}
}

func (m *Metrics) Trial(operation, result string) {
	if m == nil {
		return
	}
	m.trialOperations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) Subscription(operation, result string) {
	if m == nil {
		return
	}
	m.subscriptionOperations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) Referral(operation, result string) {
	if m == nil {
		return
	}
	m.referralOperations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RewardDays(n int) {
	if m == nil {
		return
	}
	m.rewardDaysGranted.Add(float64(n))
}

func (m *Metrics) Notification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}
