package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tokmz/wxgate/internal/config"
	"github.com/tokmz/wxgate/internal/handler"
	"github.com/tokmz/wxgate/internal/session"
	"github.com/tokmz/wxgate/internal/storage"
	"github.com/tokmz/wxgate/internal/wechat"
	"github.com/tokmz/wxgate/pkg/cache"
	"github.com/tokmz/wxgate/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	store, err := newCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer store.Close()

	db, err := storage.Open(&storage.Config{
		DSN:          cfg.Storage.DSN,
		MaxIdleConns: cfg.Storage.MaxIdleConns,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		LogSQL:       cfg.Storage.LogSQL,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	client := wechat.NewClient(wechat.ClientConfig{
		AppID:     cfg.Wx.AppID,
		AppSecret: cfg.Wx.AppSecret,
		Token:     cfg.Wx.Token,
		AESKey:    cfg.Wx.AESKey(),
		BaseURL:   cfg.Wx.BaseURL,
		Timeout:   cfg.Wx.Timeout,
	}, store, log)

	registry := session.NewRegistry()
	users := storage.NewUserRepo(db)
	router := wechat.NewEventRouter(users, registry, cfg.Wx.AuthRedirectURL, log)

	webhook := handler.NewWebhookHandler(client, router, cfg.Wx.AuthRedirectURL, log)
	ws := handler.NewWSHandler(registry, client, log)

	srv := handler.NewServer(handler.ServerConfig{
		Addr:            cfg.Server.Addr,
		Mode:            cfg.Server.Mode,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, webhook, ws, log)

	log.Info("wxgate starting", zap.String("addr", cfg.Server.Addr))
	return srv.Run(context.Background())
}

func newLogger(cfg config.Log) (logger.Logger, error) {
	lc := &logger.Config{
		Level:   logger.ParseLevel(cfg.Level),
		Format:  logger.Format(cfg.Format),
		Console: cfg.Console,
	}
	if cfg.File != "" {
		lc.Rotate = &logger.RotateConfig{
			Filename: cfg.File,
			MaxSize:  cfg.MaxSize,
			MaxAge:   cfg.MaxAge,
			Compress: cfg.Compress,
		}
	}
	return logger.New(lc)
}

func newCache(cfg config.Cache) (cache.Cache, error) {
	switch cache.DriverType(cfg.Driver) {
	case cache.DriverRedis:
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Addr = cfg.Addr
		redisCfg.Password = cfg.Password
		redisCfg.DB = cfg.DB
		return cache.NewWithOptions(
			cache.WithRedis(redisCfg),
			cache.WithKeyPrefix(cfg.KeyPrefix),
		)
	default:
		return cache.NewWithOptions(
			cache.WithMemory(cache.DefaultMemoryConfig()),
			cache.WithKeyPrefix(cfg.KeyPrefix),
		)
	}
}
