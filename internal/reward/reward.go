// Package reward описывает возможность начислить пользователю бонусные дни подписки
// и проверить, что пользователь оплатил подписку.
// Реализуется сервисом подписок, используется реферальной программой.
package reward

import (
	"context"

	"github.com/talepify/entitlement-service/internal/models"
)

// Granter начисляет дни к текущей дате окончания подписки.
//
// Повторный вызов с тем же idempotencyKey ничего не меняет и возвращает текущую запись.
// Пустой ключ отключает проверку повтора. Без подписки возвращается models.ErrNoSubscription.
type Granter interface {
	AddReferralRewardDays(ctx context.Context, userID string, days int, idempotencyKey string) (*models.Subscription, error)
}

// PurchaseChecker сообщает, есть ли у пользователя действующая оплаченная подписка.
// Пробный период и бонусные дни покупкой не считаются.
type PurchaseChecker interface {
	HasActivePurchase(ctx context.Context, userID string) (bool, error)
}
