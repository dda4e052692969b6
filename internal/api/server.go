package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"todolist/internal/api/auth"
	"todolist/internal/api/middleware"
	"todolist/internal/config"
	"todolist/internal/model"
	"todolist/internal/pkg/dedup"
	"todolist/internal/pkg/metrics"
	"todolist/internal/pkg/notify"
	"todolist/internal/pkg/password"
	"todolist/internal/pkg/queue"
	"todolist/internal/pkg/token"
	"todolist/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	mailWorkers       = 2
	mailQueueCapacity = 100
	mailSendTimeout   = 30 * time.Second
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库存储、可选的 Redis 客户端以及 Gin 路由引擎。
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	rdb       *redis.Client
	router    *gin.Engine
	auth      *auth.Handler
	tokens    *token.Manager
	hasher    *password.Hasher
	mailQueue *queue.Queue
	deduper   Deduper
	todoStore TodoStore
}

// TodoStore 是待办接口依赖的存储操作，所有方法都按 ownerID 隔离。
type TodoStore interface {
	Ping(ctx context.Context) error
	ListTodos(ctx context.Context, ownerID uint, skip, limit int) ([]model.Todo, error)
	CreateTodo(ctx context.Context, todo *model.Todo) error
	UpdateTodo(ctx context.Context, ownerID, id uint, patch model.TodoPatch) (*model.Todo, error)
	DeleteTodo(ctx context.Context, ownerID, id uint) error
}

// Deduper 记录 Idempotency-Key，防止重复创建。
type Deduper interface {
	Claim(ctx context.Context, userID uint, key string) (bool, error)
	Release(ctx context.Context, userID uint, key string) error
	Ping(ctx context.Context) error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 打开数据库并执行自动迁移
// 2. 配置了 Redis 时连接 Redis（用于幂等键）
// 3. 初始化密码哈希、令牌签发与邮件通知（配置了 SMTP 时后台发送）
// 4. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = st.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	} else {
		logger.Info("redis not configured, idempotency keys disabled")
	}

	emailNotifier := notify.NewEmailNotifier(&cfg.Email, logger)
	var notifier notify.Notifier = emailNotifier
	var mailQueue *queue.Queue
	if emailNotifier.Enabled() {
		// 邮件在后台发送，注册请求不等待 SMTP
		mailQueue = queue.NewQueue(logger, mailWorkers, mailQueueCapacity)
		mailQueue.Start(context.Background())
		notifier = notify.NewAsyncNotifier(emailNotifier, mailQueue, mailSendTimeout)
	} else {
		logger.Info("smtp not configured, welcome emails disabled")
	}

	tokens := token.NewManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL())
	hasher := password.NewHasher(cfg.Security.BcryptCost)

	// 初始化 Prometheus 指标
	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSOrigins()))

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		rdb:       rdb,
		router:    r,
		auth:      auth.NewHandler(st, hasher, tokens, notifier, logger),
		tokens:    tokens,
		hasher:    hasher,
		mailQueue: mailQueue,
		deduper:   dedup.NewDeduplicator(rdb, cfg.Redis.IdempotencyTTL),
		todoStore: st,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 等待后台邮件发送完成，然后关闭数据库与缓存连接。
func (s *Server) Close() error {
	var errs []error
	if s.mailQueue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mailQueue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain mail queue: %w", err))
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/register", s.auth.Register)
	s.router.POST("/login", s.auth.Login)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.tokens, s.store, s.logger))
	authed.GET("/me", s.handleMe)
	authed.GET("/todos", s.handleListTodos)
	authed.POST("/todos", s.handleCreateTodo)
	authed.PUT("/todos/:id", s.handleUpdateTodo)
	authed.DELETE("/todos/:id", s.handleDeleteTodo)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.todoStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.todoStore.Ping(ctx); err != nil {
		s.logger.Warn("healthz: database unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if s.deduper != nil {
		if err := s.deduper.Ping(ctx); err != nil {
			s.logger.Warn("healthz: redis unavailable", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
