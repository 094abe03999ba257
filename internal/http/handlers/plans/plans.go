// Package plans HTTP-обработчик каталога тарифов.
package plans

import (
	"net/http"

	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/models"
)

// Handler отдаёт каталог тарифов.
type Handler struct{}

// New создаёт Handler.
func New() *Handler {
	return &Handler{}
}

// ServeHTTP godoc
// @Summary Каталог тарифов
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Response
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response.Send(w, r, http.StatusOK, response.OK(models.Plans()))
}
