package model

import "time"

// Post 是服务管理的唯一领域记录。
type Post struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ChangeType 标识一次集合变更的种类。
type ChangeType string

const (
	ChangePostCreated ChangeType = "post_created"
	ChangePostDeleted ChangeType = "post_deleted"
)

// PostChange 表示变更日志中的一条事实记录。
type PostChange struct {
	// Seq 由变更日志分配，从 1 开始单调递增。
	Seq int64 `json:"seq"`
	// EventID 用于去重，同一个 EventID 只记录一次。
	EventID string     `json:"event_id"`
	Type    ChangeType `json:"type"`
	Post    Post       `json:"post"`
	At      time.Time  `json:"at"`
}

// ErrorResponse 是所有失败响应的统一结构。
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse 是删除成功时的响应结构。
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse 是 /healthz 的响应结构。
type HealthResponse struct {
	Status string `json:"status"`
	Posts  int    `json:"posts"`
}
