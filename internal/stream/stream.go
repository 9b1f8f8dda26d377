// Package stream 维护各聊天的流式会话状态表
// 每个聊天同一时刻至多持有一个会话记录，表内所有变更串行执行
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/purpose168/parley-cn/internal/csync"
	"github.com/purpose168/parley-cn/internal/pubsub"
)

// Session 表示一个聊天当前进行中的流式状态
type Session struct {
	ChatID string // 所属聊天的ID
	// IsLoading 请求已发出但尚未收到首个数据块
	IsLoading bool
	// IsStreaming 已收到首个数据块，正在持续接收
	IsStreaming bool
	// StreamingMessage 到目前为止累积的回复文本
	StreamingMessage string
	// PlaceholderID 数据库中占位消息的ID
	PlaceholderID string
	// Cancel 取消本轮对话的回调，取消后负责清理会话记录
	Cancel context.CancelFunc
	// StartedAt 本轮对话开始时间
	StartedAt time.Time
}

// Active 会话是否处于加载或流式接收状态
func (s Session) Active() bool {
	return s.IsLoading || s.IsStreaming
}

// Table 流式会话状态表
// 所有写操作持同一把锁串行执行，保证每次变更都基于最新快照
type Table struct {
	*pubsub.Broker[Session]
	mu       sync.Mutex
	sessions *csync.Map[string, Session]
}

// NewTable 创建新的会话状态表
func NewTable() *Table {
	return &Table{
		Broker:   pubsub.NewBroker[Session](),
		sessions: csync.NewMap[string, Session](),
	}
}

// Create 为聊天登记新会话
// 同一聊天已有会话时整体替换，维持每聊天至多一条记录的约束
func (t *Table) Create(session Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	t.sessions.Set(session.ChatID, session)
	t.Publish(pubsub.CreatedEvent, session)
}

// Update 在最新快照上应用变更函数并写回
// 会话不存在时不做任何事，返回 false
func (t *Table) Update(chatID string, apply func(*Session)) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions.Get(chatID)
	if !ok {
		return Session{}, false
	}
	apply(&session)
	t.sessions.Set(chatID, session)
	t.Publish(pubsub.UpdatedEvent, session)
	return session, true
}

// Remove 移除聊天的会话记录
func (t *Table) Remove(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions.Take(chatID)
	if !ok {
		return
	}
	t.Publish(pubsub.DeletedEvent, session)
}

// Get 获取聊天当前的会话记录
func (t *Table) Get(chatID string) (Session, bool) {
	return t.sessions.Get(chatID)
}

// Len 返回当前进行中的会话数量
func (t *Table) Len() int {
	return t.sessions.Len()
}

// ChatIDs 返回所有持有会话记录的聊天ID
func (t *Table) ChatIDs() []string {
	ids := make([]string, 0, t.sessions.Len())
	for id := range t.sessions.Seq2() {
		ids = append(ids, id)
	}
	return ids
}

// StreamingChatIDs 返回正在流式接收的聊天ID，用于渲染实时指示
func (t *Table) StreamingChatIDs() []string {
	var ids []string
	for id, session := range t.sessions.Seq2() {
		if session.IsStreaming {
			ids = append(ids, id)
		}
	}
	return ids
}
