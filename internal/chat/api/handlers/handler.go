package handlers

import (
	"fmt"
	"strconv"

	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ConnectCheck check api connect start
// @Summary Check chat service status
// @Description Returns a simple confirmation message
// @Tags Shared
// @Success 200 {string} string "chat service start!"
// @Router / [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("chat service start!")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Description Enable or disable debug logging
// @Tags Shared
// @Param status query bool true "Debug status"
// @Success 200 {string} string "debug mode updated"
// @Failure 400 {string} string "Invalid status value"
// @Router /debug [post]
func DebugLogFlag(c *fiber.Ctx) error {
	statusStr := c.Query("status")
	logger.Log.Info("debug", zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}

// ErrorResponse error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusOf errprocess kind -> http status
func statusOf(err error) int {
	switch errprocess.KindOf(err) {
	case errprocess.KindAuthentication:
		return fiber.StatusUnauthorized
	case errprocess.KindValidation:
		return fiber.StatusBadRequest
	case errprocess.KindAuthorization:
		return fiber.StatusForbidden
	case errprocess.KindNotFound:
		return fiber.StatusNotFound
	case errprocess.KindWindowExpired:
		return fiber.StatusConflict
	case errprocess.KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusServiceUnavailable
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusServiceUnavailable {
		logger.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorResponse{Error: errprocess.UserMessage(err)})
}
