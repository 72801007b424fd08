package handlers

import (
	"context"
	"errors"
	"net/http"

	"blogify/internal/logger"
	"blogify/internal/repository"
	"blogify/internal/services"
	"blogify/internal/utils"
	"blogify/internal/utils/helpers"

	"go.uber.org/zap"
)

// writeError переводит доменные ошибки в HTTP-статусы.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		helpers.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, utils.ErrInvalidToken):
		helpers.Error(w, http.StatusUnauthorized, "Неверный email или пароль")
	case errors.Is(err, services.ErrForbidden):
		helpers.Error(w, http.StatusForbidden, "Доступ запрещён")
	case errors.Is(err, repository.ErrNotFound):
		helpers.Error(w, http.StatusNotFound, "Не найдено")
	case errors.Is(err, repository.ErrDuplicateAccount):
		helpers.Error(w, http.StatusConflict, "Пользователь с таким email уже существует")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		helpers.Error(w, http.StatusServiceUnavailable, "Запрос отменён")
	default:
		logger.WithCtx(r.Context()).Error("Необработанная ошибка", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
