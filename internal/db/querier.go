// 由 sqlc 自动生成的代码。请勿手动编辑。
// 版本信息:
//   sqlc v1.30.0

package db

import (
	"context"
)

// Querier 定义了所有数据库查询操作的接口
type Querier interface {
	// CreateChat 创建新的聊天记录
	CreateChat(ctx context.Context, arg CreateChatParams) (Chat, error)
	// CreateMessage 创建新的消息记录
	CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error)
	// DeleteChat 删除指定的聊天记录
	DeleteChat(ctx context.Context, id string) error
	// DeleteChatMessages 删除指定聊天的所有消息
	DeleteChatMessages(ctx context.Context, chatID string) error
	// DeleteMessage 删除指定的消息记录
	DeleteMessage(ctx context.Context, id string) error
	// GetChatByID 根据ID获取聊天记录
	GetChatByID(ctx context.Context, id string) (Chat, error)
	// GetMessage 根据ID获取消息记录
	GetMessage(ctx context.Context, id string) (Message, error)
	// ListChats 获取所有聊天列表（按更新时间降序）
	ListChats(ctx context.Context) ([]Chat, error)
	// ListMessagesByChat 按聊天列出所有消息（按创建顺序）
	ListMessagesByChat(ctx context.Context, chatID string) ([]Message, error)
	// TouchChat 刷新聊天的更新时间
	TouchChat(ctx context.Context, id string) error
	// UpdateChat 更新聊天记录
	UpdateChat(ctx context.Context, arg UpdateChatParams) (Chat, error)
	// UpdateMessage 更新消息记录
	UpdateMessage(ctx context.Context, arg UpdateMessageParams) error
}

var _ Querier = (*Queries)(nil)
