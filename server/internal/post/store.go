package post

import (
	"context"

	"blog-posts/server/internal/model"
)

type Store interface {
	// List 返回集合副本；opts 指定排序时只排序副本，不改变存储顺序。
	List(ctx context.Context, opts ListOptions) ([]model.Post, error)
	// Search 按插入顺序返回匹配的帖子。
	Search(ctx context.Context, q SearchQuery) ([]model.Post, error)
	// Create 分配 id = max(已有 id)+1 并追加到末尾。
	Create(ctx context.Context, title, content string) (model.Post, error)
	// Delete 删除指定 id 的帖子，返回被删除的记录。
	Delete(ctx context.Context, id int) (model.Post, error)
	Count(ctx context.Context) (int, error)
}
