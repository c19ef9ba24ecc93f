package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blog-posts/server/internal/metrics"
	"blog-posts/server/internal/model"
	"blog-posts/server/internal/post"
	"blog-posts/server/internal/service"
	"blog-posts/server/internal/stream"
)

// maxCreateBody 是 POST /api/posts 请求体的上限。
const maxCreateBody = 1 << 20

type Server struct {
	posts       *service.PostService
	stream      *stream.Handler
	metrics     *metrics.Metrics
	metricsPath string
	logger      *zap.Logger
}

// Option 定制 Server 的可选组件。
type Option func(*Server)

// WithMetrics 启用请求指标并在 path 上暴露 prometheus registry。
func WithMetrics(m *metrics.Metrics, path string) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
	}
}

// WithStream 注册 /api/posts/stream。
func WithStream(h *stream.Handler) Option {
	return func(s *Server) { s.stream = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(posts *service.PostService, opts ...Option) *Server {
	s := &Server{
		posts:  posts,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	// 路径严格匹配，/api/posts/ 返回 404 而不是重定向。
	engine.RedirectTrailingSlash = false

	// metrics 放在 recovery 与 CORS 外层，panic 和预检请求也会被计数。
	middlewares := []gin.HandlerFunc{requestIDMiddleware()}
	if s.metrics != nil {
		middlewares = append(middlewares, s.metrics.Middleware())
	}
	middlewares = append(middlewares,
		accessLogMiddleware(s.logger),
		recoveryMiddleware(s.logger),
		corsMiddleware(),
	)
	engine.Use(middlewares...)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, model.ErrorResponse{Error: "method not allowed"})
	})

	engine.GET("/healthz", s.handleHealthz)
	if s.metrics != nil {
		engine.GET(s.metricsPath, gin.WrapH(s.metrics.Handler()))
	}

	engine.GET("/api/posts", s.handleListPosts)
	engine.POST("/api/posts", s.handleCreatePost)
	engine.GET("/api/posts/search", s.handleSearchPosts)
	engine.GET("/api/posts/changes", s.handleChanges)
	if s.stream != nil {
		engine.GET("/api/posts/stream", s.stream.Handle)
	}
	engine.DELETE("/api/posts/:id", s.handleDeletePost)
	return engine
}

// handleHealthz 返回服务健康状态与当前帖子数。
func (s *Server) handleHealthz(c *gin.Context) {
	n, err := s.posts.Count(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.HealthResponse{Status: "ok", Posts: n})
}

// handleListPosts 处理 GET /api/posts，支持 sort/direction 参数。
func (s *Server) handleListPosts(c *gin.Context) {
	posts, err := s.posts.List(c.Request.Context(), c.Query("sort"), c.Query("direction"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// handleSearchPosts 处理 GET /api/posts/search。
func (s *Server) handleSearchPosts(c *gin.Context) {
	q := post.SearchQuery{
		Title:   c.Query("title"),
		Content: c.Query("content"),
	}
	posts, err := s.posts.Search(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// handleCreatePost 处理 POST /api/posts。
// 请求体按字段存在性校验，不依赖 Content-Type。
func (s *Server) handleCreatePost(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCreateBody)
	body, err := c.GetRawData()
	if err != nil {
		s.writeError(c, fmt.Errorf("read body: %w", err))
		return
	}

	np, err := post.DecodeNewPost(body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	created, err := s.posts.Create(c.Request.Context(), np)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// handleDeletePost 处理 DELETE /api/posts/:id，只接受十进制非负整数 id。
func (s *Server) handleDeletePost(c *gin.Context) {
	raw := c.Param("id")
	if !isDigits(raw) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		// 超出 int 范围的 id 不可能存在。
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: fmt.Sprintf("Post with id %s not found.", raw)})
		return
	}

	if _, err := s.posts.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{
		Message: fmt.Sprintf("Post with id %d has been deleted successfully.", id),
	})
}

// handleChanges 处理 GET /api/posts/changes?since=<seq>。
func (s *Server) handleChanges(c *gin.Context) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error: fmt.Sprintf("Invalid since '%s'. Expected a non-negative integer", raw),
			})
			return
		}
		since = n
	}

	changes, err := s.posts.Changes(c.Request.Context(), since)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, changes)
}

// writeError 把领域错误映射为状态码；未知错误只在服务端记录详情。
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validation *post.ValidationError
		invalid    *post.InvalidParameterError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "request body too large"})
	case errors.As(err, &validation), errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, post.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal server error"})
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
