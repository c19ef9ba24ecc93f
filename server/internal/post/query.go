package post

import (
	"cmp"
	"slices"
	"strings"

	"blog-posts/server/internal/model"
)

// SortField 是列表接口允许排序的字段。
type SortField string

const (
	SortNone    SortField = ""
	SortTitle   SortField = "title"
	SortContent SortField = "content"
)

// Direction 是排序方向，缺省为升序。
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var (
	allowedSortFields = []string{string(SortTitle), string(SortContent)}
	allowedDirections = []string{string(Asc), string(Desc)}
)

// ListOptions 描述一次列表查询。零值表示按插入顺序返回全部帖子。
type ListOptions struct {
	Sort      SortField
	Direction Direction
}

// ParseListOptions 校验 sort/direction 查询参数。空字符串视为未传。
// sort 先于 direction 校验，因此两者都非法时只报告 sort。
func ParseListOptions(sort, direction string) (ListOptions, error) {
	opts := ListOptions{Direction: Asc}
	if sort != "" {
		if !slices.Contains(allowedSortFields, sort) {
			return ListOptions{}, &InvalidParameterError{Name: "sort field", Value: sort, Allowed: allowedSortFields}
		}
		opts.Sort = SortField(sort)
	}
	if direction != "" {
		if !slices.Contains(allowedDirections, direction) {
			return ListOptions{}, &InvalidParameterError{Name: "direction", Value: direction, Allowed: allowedDirections}
		}
		opts.Direction = Direction(direction)
	}
	return opts, nil
}

// SortPosts 按字段做大小写不敏感的稳定排序，原地修改 posts。
// 降序时相等键仍保持原有相对顺序。
func SortPosts(posts []model.Post, opts ListOptions) {
	if opts.Sort == SortNone {
		return
	}
	key := func(p model.Post) string {
		if opts.Sort == SortContent {
			return strings.ToLower(p.Content)
		}
		return strings.ToLower(p.Title)
	}
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		c := cmp.Compare(key(a), key(b))
		if opts.Direction == Desc {
			return -c
		}
		return c
	})
}

// SearchQuery 是搜索接口的查询条件，空字符串表示未提供该条件。
type SearchQuery struct {
	Title   string
	Content string
}

// Empty 报告是否没有任何查询条件。
func (q SearchQuery) Empty() bool {
	return q.Title == "" && q.Content == ""
}

// Match 对已提供的条件做 OR 匹配，大小写不敏感的子串包含。
// 没有任何条件时不匹配任何帖子。
func (q SearchQuery) Match(p model.Post) bool {
	if q.Title != "" && strings.Contains(strings.ToLower(p.Title), strings.ToLower(q.Title)) {
		return true
	}
	if q.Content != "" && strings.Contains(strings.ToLower(p.Content), strings.ToLower(q.Content)) {
		return true
	}
	return false
}
