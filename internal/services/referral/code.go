package referral

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	codePrefixLen = 4
	codeRandomLen = 6
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8,}$`)

// GenerateReferralCode собирает код: первые четыре буквы или цифры userID,
// момент now в base36 и шесть случайных символов base36, всё в верхнем регистре.
// Уникальность обеспечивает хранилище.
func GenerateReferralCode(userID string, now time.Time) string {
	var b strings.Builder
	n := 0
	for _, r := range userID {
		if n == codePrefixLen {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			n++
		}
	}
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	for range codeRandomLen {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return strings.ToUpper(b.String())
}

// ValidateReferralCode проверяет формат: не меньше восьми заглавных букв или цифр.
func ValidateReferralCode(code string) bool {
	return codePattern.MatchString(code)
}
