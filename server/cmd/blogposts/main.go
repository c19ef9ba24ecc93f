package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blog-posts/server/internal/api"
	"blog-posts/server/internal/config"
	"blog-posts/server/internal/domain"
	"blog-posts/server/internal/events"
	"blog-posts/server/internal/logging"
	"blog-posts/server/internal/metrics"
	"blog-posts/server/internal/model"
	"blog-posts/server/internal/post"
	"blog-posts/server/internal/service"
	"blog-posts/server/internal/stream"
	"blog-posts/server/internal/timeline"
)

func main() {
	// 配置文件可选；端口、日志级别、种子文件也可以用环境变量覆盖（见 config.Load）。
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	seed, err := domain.LoadSeed(cfg.Paths.Seed)
	if err != nil {
		return err
	}

	wmLogger := logging.NewWatermillAdapter(logger)
	bus := events.NewBus(wmLogger)
	defer func() { _ = bus.Close() }()

	m := metrics.New()
	router, err := events.NewChangeRouter(bus, wmLogger, func(c model.PostChange) {
		m.ObserveChange(c.Type)
	})
	if err != nil {
		return err
	}

	posts := service.New(
		post.NewInMemoryStore(seed),
		timeline.NewInMemoryStore(),
		service.WithPublisher(bus),
		service.WithCountObserver(m),
		service.WithLogger(logger.Named("posts")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := posts.Init(ctx); err != nil {
		return err
	}

	routerErr := make(chan error, 1)
	go func() { routerErr <- router.Run(context.Background()) }()
	<-router.Running()

	opts := []api.Option{
		api.WithLogger(logger.Named("api")),
		api.WithStream(stream.NewHandler(bus, stream.Config{
			PingInterval: cfg.Stream.PingInterval,
			WriteTimeout: cfg.Stream.WriteTimeout,
			Buffer:       cfg.Stream.Buffer,
		}, logger)),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(m, cfg.Metrics.Path))
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewServer(posts, opts...).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("blogposts server listening", zap.String("addr", srv.Addr), zap.Int("seed_posts", len(seed)))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case err := <-routerErr:
		if err == nil {
			err = errors.New("change router stopped unexpectedly")
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	// router 关闭时会一并关闭 bus，进而结束所有 WebSocket 订阅。
	if err := router.Close(); err != nil {
		logger.Warn("close change router", zap.Error(err))
	}
	return nil
}
