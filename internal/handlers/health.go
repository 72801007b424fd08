package handlers

import (
	"net/http"
	"time"

	"blogify/internal/utils/helpers"
)

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type HealthHandler struct {
	started time.Time
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now()}
}

// Health godoc
// @Summary Проверка живости
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	helpers.JSON(w, http.StatusOK, healthResponse{Status: "ok", Uptime: time.Since(h.started).Round(time.Second).String()})
}
