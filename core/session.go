package core

import "sync"

// Reference 嵌入时记录的原始奇异值，供盲提取使用
type Reference struct {
	Values []float64
}

// Len 奇异值个数
func (r Reference) Len() int { return len(r.Values) }

// Session 由调用方持有的水印会话，保存一份 Reference。
// 每个会话只有一个槽位，后写覆盖前写；不同会话之间互不影响，可并发使用。
type Session struct {
	mu  sync.RWMutex
	ref *Reference
}

func NewSession() *Session {
	return &Session{}
}

// Store 覆盖保存 reference (拷贝一份)
func (s *Session) Store(ref Reference) {
	cp := Reference{Values: append([]float64(nil), ref.Values...)}

	s.mu.Lock()
	s.ref = &cp
	s.mu.Unlock()
}

// Reference 返回当前 reference 的拷贝，没有时 ok 为 false
func (s *Session) Reference() (ref Reference, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ref == nil {
		return Reference{}, false
	}
	return Reference{Values: append([]float64(nil), s.ref.Values...)}, true
}

// Reset 清空 reference
func (s *Session) Reset() {
	s.mu.Lock()
	s.ref = nil
	s.mu.Unlock()
}
