package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/milvusclient"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"flagstone-assistant/internal/ai"
	"flagstone-assistant/internal/app"
	"flagstone-assistant/internal/cache"
	"flagstone-assistant/internal/config"
	"flagstone-assistant/internal/corpus"
	"flagstone-assistant/internal/index"
	"flagstone-assistant/internal/model"
	"flagstone-assistant/internal/platform/logger"
	milvusClient "flagstone-assistant/internal/platform/milvus"
	mysqlClient "flagstone-assistant/internal/platform/mysql"
	rabbitmqClient "flagstone-assistant/internal/platform/rabbitmq"
	redisClient "flagstone-assistant/internal/platform/redis"
	"flagstone-assistant/internal/repository"
	"flagstone-assistant/internal/watcher"
	"flagstone-assistant/internal/worker"
)

type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Settings *app.Settings

	Ollama  *ai.OllamaClient
	Index   index.Gateway
	Loader  *corpus.Loader
	Corpus  *corpus.Service
	Chat    *app.ChatService
	History *app.HistoryService // nil unless history is enabled

	MySQL   *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Milvus  *milvusclient.Client
	Reindex *rabbitmqClient.ReindexPublisher

	ExchangeWorker *worker.ExchangePersistWorker
	ReindexWorker  *worker.ReindexWorker
	Watcher        *watcher.CorpusWatcher

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		Settings:  app.NewSettings(cfg.RAG.CacheEnabled),
		StartedAt: time.Now(),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	a.Ollama = ai.NewOllamaClient(ai.OllamaConfig{
		BaseURL:    cfg.Ollama.BaseURL,
		Model:      cfg.Ollama.Model,
		EmbedModel: cfg.Ollama.EmbedModel,
		CacheSize:  cfg.Ollama.CacheSize,
		Timeout:    time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
	}, a.Log.Named("ollama"))

	gateway, err := a.newGateway(ctx)
	if err != nil {
		return err
	}
	a.Index = gateway

	store := corpus.NewStore(cfg.RAG.ContextDir)
	a.Loader = corpus.NewLoader(gateway, store, cfg.RAG.Collection, cfg.RAG.ChunkSize, a.Log.Named("corpus"))
	a.Corpus = corpus.NewService(store, a.Loader, a.Log.Named("corpus"))
	a.Chat = app.NewChatService(gateway, a.Ollama, a.Settings, app.ChatConfig{
		Collection: cfg.RAG.Collection,
		TopK:       cfg.RAG.TopK,
		Model:      cfg.Ollama.Model,
	}, a.Log.Named("chat"))

	if err := gateway.Heartbeat(ctx); err != nil {
		return fmt.Errorf("index heartbeat failed: %w", err)
	}
	if err := a.Loader.Init(ctx); err != nil {
		return err
	}

	if cfg.BrokerEnabled() {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = conn
		a.Reindex = rabbitmqClient.NewReindexPublisher(conn, cfg.RabbitMQ.ReindexQueue)
		a.ReindexWorker = worker.NewReindexWorker(conn, a.Loader, cfg.RabbitMQ.ReindexQueue, a.Log.Named("reindex-worker"))
		if err := a.ReindexWorker.Start(ctx); err != nil {
			return fmt.Errorf("start reindex worker failed: %w", err)
		}
	}

	if cfg.History.Enabled {
		if err := a.initHistory(ctx); err != nil {
			return err
		}
	}

	if cfg.Watcher.Enabled {
		a.Watcher = watcher.NewCorpusWatcher(
			cfg.RAG.ContextDir,
			time.Duration(cfg.Watcher.DebounceMS)*time.Millisecond,
			a.Loader,
			a.Log.Named("watcher"),
		)
		if err := a.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("start corpus watcher failed: %w", err)
		}
	}
	return nil
}

func (a *App) newGateway(ctx context.Context) (index.Gateway, error) {
	cfg := a.Config
	switch cfg.Index.Backend {
	case "chroma", "":
		return index.NewChromaGateway(index.ChromaConfig{
			BaseURL:     cfg.Chroma.BaseURL,
			SourceLabel: cfg.RAG.SourceLabel,
			Description: cfg.RAG.CollectionDescription,
			Timeout:     time.Duration(cfg.Chroma.TimeoutSeconds) * time.Second,
		}, a.Ollama), nil
	case "milvus":
		client, err := milvusClient.New(ctx, milvusClient.Options{
			Address:  cfg.Milvus.Address,
			Username: cfg.Milvus.Username,
			Password: cfg.Milvus.Password,
			Database: cfg.Milvus.Database,
			Timeout:  time.Duration(cfg.Milvus.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.Milvus = client
		return index.NewMilvusGateway(client, a.Ollama, index.MilvusConfig{
			Dimension:   cfg.Milvus.Dimension,
			SourceLabel: cfg.RAG.SourceLabel,
			Description: cfg.RAG.CollectionDescription,
		}), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func (a *App) initHistory(ctx context.Context) error {
	cfg := a.Config

	db, err := mysqlClient.New(ctx, cfg.MySQLDSN(), a.Log)
	if err != nil {
		return err
	}
	a.MySQL = db
	if err := db.AutoMigrate(&model.Exchange{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	a.Redis = redisCli

	historyCache := cache.NewHistoryCache(redisCli, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second, 0)
	repo := repository.NewExchangeRepository(db)

	a.ExchangeWorker = worker.NewExchangePersistWorker(a.MQConn, repo, historyCache, cfg.RabbitMQ.ExchangeQueue, a.Log.Named("exchange-worker"))
	if err := a.ExchangeWorker.Start(ctx); err != nil {
		return fmt.Errorf("start exchange worker failed: %w", err)
	}

	a.Chat.WithHistory(rabbitmqClient.NewExchangePublisher(a.MQConn, cfg.RabbitMQ.ExchangeQueue), historyCache)
	a.History = app.NewHistoryService(repo, historyCache, cfg.History.Limit, a.Log.Named("history"))
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Watcher != nil {
		if err := a.Watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.ExchangeWorker != nil {
		a.ExchangeWorker.Close()
	}
	if a.ReindexWorker != nil {
		a.ReindexWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.Milvus != nil {
		if err := a.Milvus.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}
