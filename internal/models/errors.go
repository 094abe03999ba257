package models

import "errors"

// Ошибки состояния и валидации. Все они ожидаемые и показываются пользователю
// через слой локализации, а не как внутренние сбои.
var (
	// ErrNotFound запись не найдена в хранилище
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate нарушено ограничение уникальности
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidPhone пустой или некорректный номер телефона
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrTrialAlreadyUsed номер телефона уже использовал пробный период
	ErrTrialAlreadyUsed = errors.New("trial already used")

	// ErrNoSubscription у пользователя нет подписки
	ErrNoSubscription = errors.New("no subscription")

	// ErrNoActiveSubscription у пользователя нет активной подписки
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrCannotUpgrade подписка неактивна или уже на максимальном тарифе
	ErrCannotUpgrade = errors.New("subscription cannot be upgraded")

	// ErrUnknownPlan тариф отсутствует в каталоге
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrInvalidTransition недопустимый переход статуса
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidRewardDays количество бонусных дней должно быть положительным
	ErrInvalidRewardDays = errors.New("reward days must be positive")

	// ErrInvalidReferralCode код не соответствует формату
	ErrInvalidReferralCode = errors.New("invalid referral code")

	// ErrReferralCodeNotFound владелец кода не найден
	ErrReferralCodeNotFound = errors.New("referral code not found")

	// ErrSelfReferral попытка использовать собственный код
	ErrSelfReferral = errors.New("self referral is not allowed")

	// ErrAlreadyReferred пользователь уже приглашён по другому коду
	ErrAlreadyReferred = errors.New("user already referred")

	// ErrReferralNotFound реферальная запись не найдена
	ErrReferralNotFound = errors.New("referral not found")

	// ErrReferralAlreadyCompleted награда по записи уже начислялась
	ErrReferralAlreadyCompleted = errors.New("referral already completed")

	// ErrReferralExpired срок ожидающей записи истёк
	ErrReferralExpired = errors.New("referral expired")

	// ErrPurchaseRequired приглашённый ещё не оплатил подписку
	ErrPurchaseRequired = errors.New("referred user has no purchased subscription")

	// ErrRewardNotClaimable награду можно отметить только у завершённой записи
	ErrRewardNotClaimable = errors.New("reward can be claimed only for completed referral")
)
