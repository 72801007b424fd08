package middleware

import (
	"net/http"
	"strings"

	"blogify/internal/logger"
	"blogify/internal/models"
	"blogify/internal/reqctx"
	"blogify/internal/utils/helpers"

	"go.uber.org/zap"
)

type TokenParser interface {
	ParseToken(token string) (models.Actor, error)
}

func JWTAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				logger.WithCtx(r.Context()).Warn("JWTAuth: отсутствует access token")
				helpers.Error(w, http.StatusUnauthorized, "Отсутствует access token")
				return
			}

			actor, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.WithCtx(r.Context()).Warn("JWTAuth: неверный или просроченный токен", zap.Error(err))
				helpers.Error(w, http.StatusUnauthorized, "Неверный или просроченный токен")
				return
			}

			ctx := reqctx.WithUserID(r.Context(), actor.UserID)
			ctx = reqctx.WithRole(ctx, actor.Role)

			logger.WithCtx(ctx).Debug("JWTAuth: токен валиден", zap.String("role", actor.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
