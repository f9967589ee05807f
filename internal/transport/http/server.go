package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"flagstone-assistant/internal/bootstrap"
	mysqlClient "flagstone-assistant/internal/platform/mysql"
	rabbitmqClient "flagstone-assistant/internal/platform/rabbitmq"
	redisClient "flagstone-assistant/internal/platform/redis"
	"flagstone-assistant/internal/transport/http/handler"
	"flagstone-assistant/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.Recovery(app.Log), middleware.RequestLogger(app.Log.Named("http")))

	healthHandler := handler.NewHealthHandler(handler.HealthInfo{
		App:        app.Config.App.Name,
		Env:        app.Config.App.Env,
		Collection: app.Config.RAG.Collection,
		Backend:    app.Config.Index.Backend,
		StartedAt:  app.StartedAt,
	}, app.Index, app.Ollama, dependencyChecks(app)...)
	router.GET("/healthz", healthHandler.Check)

	var reindex handler.ReindexRequester
	if app.Reindex != nil {
		reindex = app.Reindex
	}
	chatHandler := handler.NewChatHandler(app.Chat, app.Log.Named("chat"))
	docsHandler := handler.NewDocsHandler(app.Corpus, reindex, app.Log.Named("docs"))
	cacheHandler := handler.NewCacheHandler(app.Settings, app.Ollama, app.Log.Named("cache"))

	api := router.Group("/api")
	api.POST("/chat", chatHandler.Chat)

	docsGroup := api.Group("/docs")
	docsGroup.POST("", docsHandler.Update)
	docsGroup.POST("/upload", docsHandler.UploadPDF)
	docsGroup.POST("/reindex", docsHandler.Reindex)

	cacheGroup := api.Group("/cache")
	cacheGroup.POST("", cacheHandler.Set)
	cacheGroup.POST("/clear", cacheHandler.Clear)

	if app.History != nil {
		historyHandler := handler.NewHistoryHandler(app.History)
		api.GET("/history", historyHandler.List)
	}

	return router
}

func dependencyChecks(app *bootstrap.App) []handler.Check {
	var checks []handler.Check
	if app.MySQL != nil {
		checks = append(checks, handler.Check{Name: "mysql", Ping: func(ctx context.Context) error {
			return mysqlClient.Ping(ctx, app.MySQL)
		}})
	}
	if app.Redis != nil {
		checks = append(checks, handler.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx, app.Redis)
		}})
	}
	if app.MQConn != nil {
		checks = append(checks, handler.Check{Name: "rabbitmq", Ping: func(ctx context.Context) error {
			return rabbitmqClient.Ping(ctx, app.MQConn)
		}})
	}
	return checks
}
