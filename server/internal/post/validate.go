package post

import (
	"bytes"
	"encoding/json"
)

// NewPost 是通过校验的创建请求。
type NewPost struct {
	Title   string
	Content string
}

// DecodeNewPost 解析创建请求体，要求 title 与 content 均为字符串字段。
// 字段缺失、为 null 或不是字符串都视为缺失；空字符串算作已提供。
// 请求体为空、不是合法 JSON 或不是对象时两个字段都报告缺失。
func DecodeNewPost(body []byte) (NewPost, error) {
	var fields map[string]json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			fields = nil
		}
	}

	var (
		np      NewPost
		missing []string
	)
	if !stringField(fields, "title", &np.Title) {
		missing = append(missing, "title")
	}
	if !stringField(fields, "content", &np.Content) {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return NewPost{}, &ValidationError{Missing: missing}
	}
	return np, nil
}

func stringField(fields map[string]json.RawMessage, name string, dst *string) bool {
	raw, ok := fields[name]
	if !ok {
		return false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return false
	}
	*dst = *s
	return true
}
