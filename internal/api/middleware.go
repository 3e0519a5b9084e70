package api

import (
	"net/http"
	"strings"

	"github.com/annel0/meadow-world/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	ctxOperatorID    = "operator_id"
	ctxAuthoritative = "authoritative"
)

// jwtMiddleware проверяет JWT токен в заголовке Authorization (или ?token=)
func (c *Console) jwtMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" && ctx.Query("token") != "" {
			// Браузерный WebSocket не умеет ставить заголовки
			authHeader = "Bearer " + ctx.Query("token")
		}
		if authHeader == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{Message: "Отсутствует токен авторизации"})
			return
		}

		// Формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{Message: "Неверный формат токена"})
			return
		}

		operatorID, isValid, authoritative := auth.ValidateJWT(parts[1])
		if !isValid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{Message: "Недействительный токен"})
			return
		}

		ctx.Set(ctxOperatorID, operatorID)
		ctx.Set(ctxAuthoritative, authoritative)
		ctx.Next()
	}
}

// authorityMiddleware пропускает только операторов с правом менять миры
func (c *Console) authorityMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !ctx.GetBool(ctxAuthoritative) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{Message: "Оператор не авторитетен"})
			return
		}
		ctx.Next()
	}
}
