// Package sl вспомогательные атрибуты для slog.
package sl

import "log/slog"

// Err атрибут "error" с текстом ошибки. Для nil пишет пустую строку,
// чтобы логирование в ветках восстановления не паниковало.
//
//	log.Error("failed to grant reward", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Op атрибут с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}
