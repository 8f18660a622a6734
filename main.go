package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/DoraeChat/DoraeChat-BE-sub000/global"
	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat"
	"github.com/DoraeChat/DoraeChat-BE-sub000/module/chat/store"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/msgcache"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/presence"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/storage"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/ws"
)

func main() {
	cfg := global.Load()

	if err := storage.InitRedis(storage.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 100,
	}); err != nil {
		logger.Errorf("redis init: %v", err)
		os.Exit(1)
	}
	defer func() { _ = storage.CloseRedis() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err == nil {
		err = mongoClient.Ping(ctx, readpref.Primary())
	}
	cancel()
	if err != nil {
		logger.Errorf("mongo init: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	db := mongoClient.Database(cfg.MongoDatabase)

	cache := storage.NewRedisCache(storage.GetRedis())
	pres := presence.NewService(cache)
	mgr := ws.NewManager(cfg.NodeID, pres)

	if cfg.NatsURL != "" {
		bridge, err := ws.NewNATSBridge(cfg.NatsURL, mgr)
		if err != nil {
			logger.Errorf("nats init: %v", err)
			os.Exit(1)
		}
		defer bridge.Close()
	} else {
		logger.Info("[main] no NATS_URL, running single-node")
	}

	messages := store.NewMessageStore(db)
	members := store.NewMemberStore(db)
	tier := msgcache.NewTier(cache, messages, members)
	router := ws.NewRouter(mgr, pres, members, []byte(cfg.JWTSecret))

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/ws", ws.HandleWS(mgr, router))
	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := engine.Group("/api")
	api.GET("/conversations/:conversationId/messages", historyHandler(tier))
	api.GET("/messages/:messageId", messageHandler(tier))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine}
	go func() {
		logger.Infof("[main] node %s listening on %s", cfg.NodeID, cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http serve: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[main] shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
}

// historyHandler is the HTTP-facing read of the cache tier: one page of
// conversation history, oldest-first. Cursor mode via ?before=<unixMilli>.
func historyHandler(tier *msgcache.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv := c.Param("conversationId")
		userID := c.Query("userId")
		skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

		opt := msgcache.PageOptions{Skip: skip, Limit: limit}
		if raw := c.Query("before"); raw != "" {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be unix milliseconds"})
				return
			}
			at := time.UnixMilli(ms)
			opt.Before = &at
		}

		msgs, err := tier.GetPage(c.Request.Context(), conv, userID, opt)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"data": msgs})
		case err == msgcache.ErrInvalidQuery:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err == chat.ErrNotAMember:
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			logger.Errorf("[api] history conv=%s: %v", conv, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}

func messageHandler(tier *msgcache.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("messageId")
		m, err := tier.GetMessage(c.Request.Context(), id)
		switch {
		case err == msgcache.ErrInvalidQuery:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err != nil:
			logger.Errorf("[api] message id=%s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		case m == nil:
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		default:
			c.JSON(http.StatusOK, gin.H{"data": m})
		}
	}
}
