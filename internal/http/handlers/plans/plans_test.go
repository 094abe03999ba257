package plans

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talepify/entitlement-service/internal/models"
)

func TestPlans(t *testing.T) {
	rec := httptest.NewRecorder()
	New().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool          `json:"success"`
		Data    []models.Plan `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 4)
	assert.Equal(t, models.PlanMonthly, resp.Data[0].ID)
	assert.Equal(t, models.PlanYearly, resp.Data[3].ID)
}
