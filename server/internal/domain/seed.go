package domain

import (
	"encoding/json"
	"fmt"
	"os"

	"blog-posts/server/internal/model"
)

// DefaultSeed 返回进程启动时的两条种子帖子。
func DefaultSeed() []model.Post {
	return []model.Post{
		{ID: 1, Title: "First post", Content: "This is the first post."},
		{ID: 2, Title: "Second post", Content: "This is the second post."},
	}
}

// LoadSeed 从指定路径加载种子帖子；path 为空时返回 DefaultSeed。
func LoadSeed(path string) ([]model.Post, error) {
	if path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var posts []model.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := validateSeed(posts); err != nil {
		return nil, fmt.Errorf("validate seed: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

func validateSeed(posts []model.Post) error {
	seen := make(map[int]struct{}, len(posts))
	for i, p := range posts {
		if p.ID <= 0 {
			return fmt.Errorf("post #%d: id must be positive", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("post #%d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Title == "" || p.Content == "" {
			return fmt.Errorf("post #%d: title and content are required", i)
		}
	}
	return nil
}
