package middlewares

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

type validatorFunc func(ctx context.Context, tokenStr string) error

func (f validatorFunc) ValidateSession(ctx context.Context, tokenStr string) error {
	return f(ctx, tokenStr)
}

func TestSessionMiddleware(t *testing.T) {
	logger.SetNewNop()
	token.Configure("mw_secret", "")
	tk, err := token.GenerateJWT("member-1", string(token.RoleMember))
	assert.NoError(t, err)

	tests := []struct {
		name   string
		check  validatorFunc
		status int
	}{
		{"live session", func(ctx context.Context, s string) error {
			if s != tk {
				return errprocess.Set(errprocess.KindAuthentication, "Session expired")
			}
			return nil
		}, fiber.StatusOK},
		{"session gone", func(ctx context.Context, s string) error {
			return errprocess.Set(errprocess.KindAuthentication, "Session expired")
		}, fiber.StatusUnauthorized},
		{"store down", func(ctx context.Context, s string) error {
			return errprocess.Wrap(errprocess.KindStore, "find session", errors.New("redis timeout"))
		}, fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/me", JWTMiddleware(), SessionMiddleware(tt.check), func(c *fiber.Ctx) error {
				return c.SendString(c.Locals(TokenMemberID).(string))
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/me?auth="+tk, nil))
			assert.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
