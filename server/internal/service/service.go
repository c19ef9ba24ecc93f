package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blog-posts/server/internal/model"
	"blog-posts/server/internal/post"
	"blog-posts/server/internal/timeline"
)

// Publisher 把已记录的变更广播给订阅者。
type Publisher interface {
	Publish(change model.PostChange) error
}

// CountObserver 接收每次写操作后的帖子总数。
type CountObserver interface {
	SetPosts(n int)
}

// PostService 负责帖子读写的编排。
//
// 职责与契约：
//   - 写操作（创建/删除）整体串行：修改集合、写变更日志、发布变更在同一把锁内完成，
//     因此变更日志的 seq 顺序、发布顺序与集合的修改顺序一致。
//   - 集合修改成功即视为请求成功；变更日志或发布失败只记录日志，不回滚。
//   - 读操作不经过写锁，由 Store 自己保证并发安全。
type PostService struct {
	mu        sync.Mutex
	store     post.Store
	timeline  timeline.Store
	publisher Publisher
	counter   CountObserver
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option 定制 PostService 的可选依赖。
type Option func(*PostService)

func WithPublisher(p Publisher) Option {
	return func(s *PostService) { s.publisher = p }
}

func WithCountObserver(c CountObserver) Option {
	return func(s *PostService) { s.counter = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *PostService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *PostService) { s.now = now }
}

func New(store post.Store, changes timeline.Store, opts ...Option) *PostService {
	s := &PostService{
		store:    store,
		timeline: changes,
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init 在启动时同步一次帖子总数。
func (s *PostService) Init(ctx context.Context) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	if s.counter != nil {
		s.counter.SetPosts(n)
	}
	return nil
}

// List 校验排序参数后返回帖子列表。
func (s *PostService) List(ctx context.Context, sort, direction string) ([]model.Post, error) {
	opts, err := post.ParseListOptions(sort, direction)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, opts)
}

func (s *PostService) Search(ctx context.Context, q post.SearchQuery) ([]model.Post, error) {
	return s.store.Search(ctx, q)
}

func (s *PostService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Create 创建帖子并记录 post_created 变更。
func (s *PostService) Create(ctx context.Context, np post.NewPost) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.Create(ctx, np.Title, np.Content)
	if err != nil {
		return model.Post{}, fmt.Errorf("create post: %w", err)
	}
	s.record(ctx, model.ChangePostCreated, p)
	return p, nil
}

// Delete 删除帖子并记录 post_deleted 变更；不存在时返回 *post.NotFoundError。
func (s *PostService) Delete(ctx context.Context, id int) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.Delete(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	s.record(ctx, model.ChangePostDeleted, p)
	return p, nil
}

// Changes 返回 seq 大于 since 的变更。
func (s *PostService) Changes(ctx context.Context, since int64) ([]model.PostChange, error) {
	return s.timeline.Since(ctx, since)
}

// record 必须在 s.mu 内调用。
func (s *PostService) record(ctx context.Context, typ model.ChangeType, p model.Post) {
	change := model.PostChange{
		EventID: s.newID(),
		Type:    typ,
		Post:    p,
		At:      s.now().UTC(),
	}

	if _, err := s.timeline.Append(ctx, &change); err != nil {
		s.logger.Error("append change failed", zap.String("type", string(typ)), zap.Int("post_id", p.ID), zap.Error(err))
		return
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(change); err != nil {
			s.logger.Warn("publish change failed", zap.Int64("seq", change.Seq), zap.Error(err))
		}
	}

	if s.counter != nil {
		if n, err := s.store.Count(ctx); err == nil {
			s.counter.SetPosts(n)
		}
	}

	s.logger.Info("post changed",
		zap.Int64("seq", change.Seq),
		zap.String("type", string(typ)),
		zap.Int("post_id", p.ID),
	)
}
