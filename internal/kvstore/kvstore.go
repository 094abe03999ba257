// Package kvstore описывает строковое хранилище ключ-значение, которое переживает
// перезапуск приложения. На нём держатся пробный период и ключи дедупликации уведомлений.
package kvstore

import (
	"context"
	"slices"
)

// Ключи, которые используют сервисы.
const (
	KeyTrialStatus       = "trial_status"
	KeyTrialPhoneNumbers = "trial_phone_numbers"
)

// Store асинхронное хранилище строк по ключу.
type Store interface {
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set записывает значение.
	Set(ctx context.Context, key, value string) error
	// Remove удаляет ключ. Отсутствие ключа ошибкой не считается.
	Remove(ctx context.Context, key string) error
}

// ScopedStore добавляет префикс ко всем ключам, кроме общих.
type ScopedStore struct {
	base   Store
	prefix string
	shared []string
}

// Scoped возвращает хранилище, в котором ключи живут под prefix:.
// Ключи из shared остаются общими для всех префиксов.
func Scoped(base Store, prefix string, shared ...string) *ScopedStore {
	return &ScopedStore{base: base, prefix: prefix, shared: shared}
}

// Key возвращает фактический ключ в базовом хранилище.
func (s *ScopedStore) Key(key string) string {
	if s.prefix == "" || slices.Contains(s.shared, key) {
		return key
	}
	return s.prefix + ":" + key
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.base.Get(ctx, s.Key(key))
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.Key(key), value)
}

func (s *ScopedStore) Remove(ctx context.Context, key string) error {
	return s.base.Remove(ctx, s.Key(key))
}

// InstallationPrefix префикс ключей одной установки приложения.
func InstallationPrefix(installationID string) string {
	return "installation:" + installationID
}
