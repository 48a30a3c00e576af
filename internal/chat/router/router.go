package router

import (
	"realtime_chat_service/internal/chat/api/handlers"
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/pkg/metrics"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// RegisterRoutes 注册 chat service 的路由
// @title Realtime Chat Service API
// @version 1.0
// @description Chat REST API, realtime events go through /ws
// @host localhost:8083
// @BasePath /
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, chatHandler *handlers.ChatHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)

	r.Get("/", handlers.ConnectCheck)
	r.Post("/debug", handlers.DebugLogFlag)

	promHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	r.Get("/metrics", func(c *fiber.Ctx) error {
		promHandler(c.Context())
		return nil
	})

	// 握手前先驗證 token, 失敗時不升級
	r.Use("/ws", chatWebsocket.Upgrade)
	r.Get("/ws", websocket.New(chatWebsocket.HandleConnection))

	api := r.Group("/api", middlewares.JWTMiddleware(), chatHandler.RequireSession(), metrics.HTTPMetricsMiddleware())

	chats := api.Group("/chats")
	chats.Get("/", chatHandler.ListChats)
	chats.Post("/private/:userId", chatHandler.AccessPrivateChat)
	chats.Post("/group", chatHandler.CreateGroupChat)
	chats.Put("/group/:chatId/rename", chatHandler.RenameGroup)
	chats.Put("/group/:chatId/add", chatHandler.AddToGroup)
	chats.Put("/group/:chatId/remove", chatHandler.RemoveFromGroup)
	chats.Put("/group/:chatId/admin", chatHandler.MakeAdmin)

	api.Get("/messages/:chatId", chatHandler.FetchMessages)
}
