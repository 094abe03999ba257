package response

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"

	"github.com/talepify/entitlement-service/internal/models"
)

func TestOK(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := OK(data)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("something went wrong")

	assert.False(t, resp.Success)
	assert.Equal(t, "something went wrong", resp.Error)
	assert.Nil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type TestStruct struct {
		Code string `validate:"required,alphanum"`
		Plan string `validate:"required"`
	}

	err := validator.New().Struct(TestStruct{Code: "!!!"})
	assert.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "field Code can contain only numbers and letters")
	assert.Contains(t, resp.Error, "field Plan is a required field")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidPhone, http.StatusBadRequest},
		{models.ErrSelfReferral, http.StatusBadRequest},
		{models.ErrNoSubscription, http.StatusNotFound},
		{models.ErrReferralCodeNotFound, http.StatusNotFound},
		{models.ErrTrialAlreadyUsed, http.StatusConflict},
		{models.ErrReferralAlreadyCompleted, http.StatusConflict},
		{fmt.Errorf("subscription.UpgradePlan: %w", models.ErrCannotUpgrade), http.StatusConflict},
		{fmt.Errorf("db is down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
