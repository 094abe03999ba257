// Package i18n переводит ключи сообщений и доменные ошибки в текст для пользователя.
// Каталог собирается через golang.org/x/text, язык выбирается по Accept-Language.
package i18n

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/talepify/entitlement-service/internal/models"
)

// Translator локализует сообщения. Безопасен для конкурентного использования.
type Translator struct {
	supported []language.Tag
	matcher   language.Matcher
	printers  map[language.Tag]*message.Printer
}

// New собирает каталог. defaultLocale становится языком по умолчанию.
func New(defaultLocale string) (*Translator, error) {
	const op = "i18n.New"
	def, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	builder := catalog.NewBuilder(catalog.Fallback(def))
	sources := map[language.Tag]map[string]string{
		language.MustParse("tr-TR"): messagesTR,
		language.MustParse("en-US"): messagesEN,
	}
	if _, ok := sources[def]; !ok {
		return nil, fmt.Errorf("%s: unsupported locale %s", op, defaultLocale)
	}

	supported := []language.Tag{def}
	for tag, messages := range sources {
		for key, msg := range messages {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		if tag != def {
			supported = append(supported, tag)
		}
	}

	printers := make(map[language.Tag]*message.Printer, len(supported))
	for _, tag := range supported {
		printers[tag] = message.NewPrinter(tag, message.Catalog(builder))
	}
	return &Translator{
		supported: supported,
		matcher:   language.NewMatcher(supported),
		printers:  printers,
	}, nil
}

// Match выбирает поддерживаемый язык по значению Accept-Language или тегу.
func (t *Translator) Match(accept string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return t.supported[0]
	}
	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		return t.supported[0]
	}
	return t.supported[idx]
}

// Sprintf форматирует сообщение по ключу на выбранном языке.
func (t *Translator) Sprintf(locale, key string, args ...any) string {
	return t.printers[t.Match(locale)].Sprintf(key, args...)
}

// Error возвращает текст для доменной ошибки. Неизвестные ошибки
// превращаются в общее сообщение, подробности остаются в логах.
func (t *Translator) Error(locale string, err error) string {
	return t.Sprintf(locale, ErrorKey(err))
}

var errorKeys = []struct {
	err error
	key string
}{
	{models.ErrInvalidPhone, KeyTrialInvalidPhone},
	{models.ErrTrialAlreadyUsed, KeyTrialAlreadyUsed},
	{models.ErrNoSubscription, KeySubscriptionNone},
	{models.ErrNoActiveSubscription, KeySubscriptionNotActive},
	{models.ErrCannotUpgrade, KeySubscriptionCannotUpgrade},
	{models.ErrUnknownPlan, KeySubscriptionUnknownPlan},
	{models.ErrInvalidTransition, KeySubscriptionInvalidTransition},
	{models.ErrInvalidReferralCode, KeyReferralInvalidCode},
	{models.ErrReferralCodeNotFound, KeyReferralCodeNotFound},
	{models.ErrSelfReferral, KeyReferralSelf},
	{models.ErrAlreadyReferred, KeyReferralAlreadyReferred},
	{models.ErrReferralNotFound, KeyReferralNotFound},
	{models.ErrReferralAlreadyCompleted, KeyReferralAlreadyCompleted},
	{models.ErrReferralExpired, KeyReferralExpired},
	{models.ErrPurchaseRequired, KeyReferralPurchaseRequired},
	{models.ErrInvalidRewardDays, KeyErrorInvalidRequest},
	{models.ErrRewardNotClaimable, KeyReferralNotFound},
}

// ErrorKey ключ сообщения для ошибки.
func ErrorKey(err error) string {
	for _, ek := range errorKeys {
		if errors.Is(err, ek.err) {
			return ek.key
		}
	}
	return KeyErrorInternal
}

// IsExpected сообщает, что ошибка относится к валидации или конфликту состояния.
func IsExpected(err error) bool {
	return ErrorKey(err) != KeyErrorInternal
}
