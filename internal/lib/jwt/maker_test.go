package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func TestMaker_GenerateAndParse(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute)

	tests := []struct {
		name   string
		userID string
		phone  string
	}{
		{name: "с телефоном", userID: "user-1", phone: "+905551112233"},
		{name: "без телефона", userID: "b7c1f0a2-0e55-4a43-9b7e-4c0a1f2e3d4c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.phone)
			require.NoError(t, err)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID())
			assert.Equal(t, tt.phone, claims.Phone)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestMaker_GenerateToken_EmptyUser(t *testing.T) {
	_, err := NewJWTMaker(testSecret, time.Minute).GenerateToken("", "")
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestMaker_ParseToken_Invalid(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute)
	valid, err := maker.GenerateToken("user-1", "")
	require.NoError(t, err)

	expired, err := NewJWTMaker(testSecret, -time.Hour).GenerateToken("user-1", "")
	require.NoError(t, err)

	foreign, err := NewJWTMaker("другой ключ", time.Hour).GenerateToken("user-1", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"пустой", ""},
		{"мусор", "invalid.token.here"},
		{"истёк", expired},
		{"чужая подпись", foreign},
		{"изменён", valid + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
