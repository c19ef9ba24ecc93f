package timeline

import (
	"context"
	"sort"
	"sync"

	"blog-posts/server/internal/model"
)

// InMemoryStore 是一个基于内存的变更日志实现。
type InMemoryStore struct {
	mu       sync.RWMutex
	changes  []model.PostChange
	seq      int64
	eventIDs map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		eventIDs: make(map[string]int64),
	}
}

// Append 追加变更并分配单调递增 seq，同时回写到 change.Seq。
// 副作用：会修改内存状态；相同 EventID 会直接返回已分配的 seq（幂等）。
func (s *InMemoryStore) Append(_ context.Context, change *model.PostChange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if change.EventID != "" {
		if seq, exists := s.eventIDs[change.EventID]; exists {
			change.Seq = seq
			return seq, nil
		}
	}

	s.seq++
	change.Seq = s.seq
	s.changes = append(s.changes, *change)

	if change.EventID != "" {
		s.eventIDs[change.EventID] = s.seq
	}
	return s.seq, nil
}

// Since 返回切片副本，避免调用方修改内部数据。
func (s *InMemoryStore) Since(_ context.Context, since int64) ([]model.PostChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// changes 按 seq 升序且无空洞，二分定位起点。
	start := sort.Search(len(s.changes), func(i int) bool { return s.changes[i].Seq > since })
	out := make([]model.PostChange, len(s.changes)-start)
	copy(out, s.changes[start:])
	return out, nil
}
