package post

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("post not found")

// NotFoundError 表示按 id 查找的帖子不存在。
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Post with id %d not found.", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError 列出创建请求中缺失的字段，顺序固定为 title、content。
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Missing fields: " + strings.Join(e.Missing, ", ")
}

// InvalidParameterError 表示查询参数取值不在允许集合内。
type InvalidParameterError struct {
	// Name 是面向用户的参数描述，例如 "sort field"、"direction"。
	Name    string
	Value   string
	Allowed []string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("Invalid %s '%s'. Allowed values are: %s", e.Name, e.Value, strings.Join(e.Allowed, ", "))
}
