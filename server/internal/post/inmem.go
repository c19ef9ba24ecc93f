package post

import (
	"context"
	"slices"
	"sync"

	"blog-posts/server/internal/model"
)

// InMemoryStore 是基于内存的有序帖子集合。
// 创建时的 id 分配与追加、删除时的查找与移除都在同一把写锁内完成，
// 保证 id 唯一且插入顺序不被并发请求打乱。
type InMemoryStore struct {
	mu    sync.RWMutex
	posts []model.Post
}

// NewInMemoryStore 以 seed 初始化集合，seed 会被复制。
// 重启即丢数据，不做持久化。
func NewInMemoryStore(seed []model.Post) *InMemoryStore {
	posts := make([]model.Post, len(seed))
	copy(posts, seed)
	return &InMemoryStore{posts: posts}
}

// List 返回集合副本，按需排序。
func (s *InMemoryStore) List(_ context.Context, opts ListOptions) ([]model.Post, error) {
	out := s.snapshot()
	SortPosts(out, opts)
	return out, nil
}

// Search 返回匹配的帖子；没有查询条件时返回空切片。
func (s *InMemoryStore) Search(_ context.Context, q SearchQuery) ([]model.Post, error) {
	out := []model.Post{}
	if q.Empty() {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Create 追加新帖子。被删除的最大 id 会在下一次创建时重新分配。
func (s *InMemoryStore) Create(_ context.Context, title, content string) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for _, p := range s.posts {
		maxID = max(maxID, p.ID)
	}
	p := model.Post{ID: maxID + 1, Title: title, Content: content}
	s.posts = append(s.posts, p)
	return p, nil
}

// Delete 移除 id 对应的帖子，其余帖子保持原有顺序。
func (s *InMemoryStore) Delete(_ context.Context, id int) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.posts, func(p model.Post) bool { return p.ID == id })
	if i < 0 {
		return model.Post{}, &NotFoundError{ID: id}
	}
	removed := s.posts[i]
	s.posts = slices.Delete(s.posts, i, i+1)
	return removed, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts), nil
}

func (s *InMemoryStore) snapshot() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Post, len(s.posts))
	copy(out, s.posts)
	return out
}
