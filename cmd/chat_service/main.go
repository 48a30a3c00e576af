package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "realtime_chat_service/cmd/chat_service/docs"
	"realtime_chat_service/internal/chat/api/handlers"
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/internal/chat/router"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"
	testtool "realtime_chat_service/pkg/test_tool"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	token.Configure(cfg.JWT.Secret, cfg.JWT.Issuer)
	testtool.StartPprof()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 1. chat / message store
	var (
		roomRepo repository.RoomRepository
		msgRepo  repository.MessageRepository
		members  memberrepo.MemberRepository
	)
	switch cfg.Store {
	case "memory":
		logger.Log.Warn("using in-memory chat store, data is lost on restart")
		roomRepo = repository.NewMemoryRoomRepository()
		msgRepo = repository.NewMemoryMessageRepository()
		members = memberrepo.NewMemoryMemberRepository()
	default:
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		mongoDB, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.MongoSQL.RetryCount,
				RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
			},
			cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal(
				"Unable to connect to mongoDB database after retries",
				zap.String("host", cfg.MongoSQL.Host),
				zap.Error(err),
			)
		}
		defer mongoDB.Close(context.Background())

		if err := mongoDB.EnsureIndexes(ctx, map[string][]mongo.IndexModel{
			repository.ChatCollection:    repository.ChatIndexes(),
			repository.MessageCollection: repository.MessageIndexes(),
		}); err != nil {
			logger.Log.Fatal("create mongo indexes failed", zap.Error(err))
		}
		roomRepo = repository.NewMongoChatRepository(mongoDB.Database)
		msgRepo = repository.NewMongoChatMessageRepository(mongoDB.Database)

		// 2. member directory (owned by member service)
		sqlParams := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
		pool, err := database.NewDatabaseConnection(ctx, database.Connection{
			ConnectStr:    sqlParams,
			RetryCount:    cfg.PostgreSQL.RetryCount,
			RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval) * time.Second,
		})
		if err != nil {
			logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
		}
		defer pool.Close()
		members = memberrepo.NewMemberRepository(pool)
	}

	// 3. redis: login session + presence pub/sub
	var (
		sessions memberrepo.SessionRepository
		presPub  repository.PresencePublisher
	)
	masterName, sentinel := config.GetRedisSetting()
	if cfg.Redis.Addr != "" || len(sentinel) > 0 {
		redisClient, err := database.NewRedisClient(ctx, database.RedisConnection{
			Addr:          cfg.Redis.Addr,
			MasterName:    masterName,
			SentinelAddrs: sentinel,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.RedisDB,
		})
		if err != nil {
			logger.Log.Fatal("connect redis failed", zap.Error(err))
		}
		defer redisClient.Close()

		sessions = memberrepo.NewSessionRepository(database.NewRedisRepository[memberdomain.MemberSession](redisClient))
		pubsub := repository.NewRedisPubSub(redisClient)
		presPub = pubsub
		if err := pubsub.Subscribe(ctx, repository.PresenceChannel, func(resp domain.WSResponse, raw []byte) {
			logger.Log.Debug("presence", zap.ByteString("payload", raw))
		}); err != nil {
			logger.Log.Warn("presence subscribe failed", zap.Error(err))
		}
	} else {
		logger.Log.Warn("redis not configured, session check and presence relay disabled")
	}

	// 4. rabbitmq event log
	events := repository.NewNopEventPublisher()
	if cfg.RabbitMQ.URL != "" {
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    cfg.RabbitMQ.URL,
			RetryCount:    5,
			RetryInterval: 3 * time.Second,
		})
		if err != nil {
			logger.Log.Fatal("connect rabbitmq failed", zap.Error(err))
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, 5, time.Second)
		if err != nil {
			logger.Log.Fatal("open rabbitmq channel failed", zap.Error(err))
		}
		rabbit := database.NewRabbitRepository(conn, ch)
		defer rabbit.Close()

		events, err = repository.NewAMQPEventPublisher(rabbit, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Log.Fatal("declare exchange failed", zap.Error(err))
		}
	}

	// 5. UseCases
	messageUC := app.NewMessageUseCase(roomRepo, msgRepo, members, events, cfg.Session.EditWindow)
	roomUC := app.NewRoomUseCase(roomRepo, msgRepo, members, events)
	manager := app.NewSessionManager(app.NewAuthenticator(members, sessions), messageUC, roomUC, members, presPub, cfg.Session)

	// 6. Fiber
	// Immutable: handler 取得的字串會被存進 memory store 與 websocket session
	r := fiber.New(fiber.Config{Immutable: true})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r, app.NewChatWebsocketHandler(manager), handlers.NewChatHandler(roomUC, messageUC, manager))

	port := cfg.Port
	if port == "" {
		port = config.EnvConfig.ChatServicePort
	}

	go func() {
		logger.Log.Info("Chat Service listening", zap.String("port", port))
		if err := r.Listen(":" + port); err != nil {
			logger.Log.Error("fiber stopped", zap.Error(err))
			stop()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down chat service")
	manager.CloseAll()
	if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Error("fiber shutdown", zap.Error(err))
	}
}
