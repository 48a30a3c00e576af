package middlewares

import (
	"context"

	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SessionValidator check the token still belongs to a live login session
type SessionValidator interface {
	ValidateSession(ctx context.Context, tokenStr string) error
}

// SessionMiddleware 放在 JWTMiddleware 之後, 登出或過期的 token 不能再呼叫 REST API
func SessionMiddleware(v SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, _ := c.Locals(TokenRaw).(string)
		if err := v.ValidateSession(c.UserContext(), tokenStr); err != nil {
			if errprocess.IsKind(err, errprocess.KindAuthentication) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": errprocess.UserMessage(err),
				})
			}
			logger.Log.Error("session check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": errprocess.UserMessage(err),
			})
		}
		return c.Next()
	}
}
