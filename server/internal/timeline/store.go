package timeline

import (
	"context"

	"blog-posts/server/internal/model"
)

type Store interface {
	// Append 写入一条变更，返回本次写入的 seq。
	// 约定：seq 单调递增；相同 EventID 的请求幂等返回同一 seq。
	Append(ctx context.Context, change *model.PostChange) (int64, error)
	// Since 返回 seq 大于 since 的全部变更（按 seq 顺序）。
	Since(ctx context.Context, since int64) ([]model.PostChange, error)
}
