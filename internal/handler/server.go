package handler

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/wxgate/pkg/logger"
)

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string
	Mode            string
	ShutdownTimeout time.Duration
}

// Server HTTP 服务
type Server struct {
	cfg    ServerConfig
	engine *gin.Engine
	server *http.Server
	ws     *WSHandler
	log    logger.Logger
}

// NewServer 创建 HTTP 服务并注册路由
func NewServer(cfg ServerConfig, webhook *WebhookHandler, ws *WSHandler, log logger.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), AccessLog(log))

	portal := engine.Group("/wx/portal/public")
	{
		portal.GET("", webhook.EchoStr)
		portal.POST("", webhook.Post)
		portal.GET("/callBack", webhook.CallBack)
	}
	engine.GET("/websocket", ws.Connect)

	engine.GET("/health", func(c *gin.Context) {
		OK(c, gin.H{"status": "up"})
	})

	return &Server{
		cfg:    cfg,
		engine: engine,
		ws:     ws,
		log:    log,
		server: &http.Server{
			Addr:    cfg.Addr,
			Handler: engine,
		},
	}
}

// Handler 返回底层 http.Handler
func (s *Server) Handler() http.Handler { return s.engine }

// Run 启动服务，收到 SIGINT/SIGTERM 或 ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)

		// Shutdown 不会断开已升级的 WebSocket 连接，这里统一注销
		s.ws.Shutdown()
		return err
	})

	return g.Wait()
}
