// Package chat 提供聊天会话管理服务，包括聊天的创建、查询、重命名、删除
// 以及令牌用量与成本的累加统计
package chat

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/purpose168/parley-cn/internal/db"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/pubsub"
)

// Chat 表示一个聊天会话及其累计统计信息
type Chat struct {
	ID               string // 聊天唯一标识符
	Title            string // 聊天标题
	Model            string // 该聊天使用的模型名称
	ReasoningEffort  string // 推理强度（low/medium/high/no-reasoning）
	VoiceMode        bool   // 是否启用语音模式
	HasImages        bool   // 是否包含图片内容
	PromptTokens     int64  // 提示词令牌累计使用量
	CompletionTokens int64  // 完成令牌累计使用量
	// Cost 聊天累计成本。一旦累加过未知定价的用量，
	// 该值将固定为 message.UnknownCost（-1）
	Cost      float64
	CreatedAt int64 // 创建时间戳（Unix时间戳）
	UpdatedAt int64 // 更新时间戳（Unix时间戳）
}

// CreateChatParams 创建聊天的参数结构体
type CreateChatParams struct {
	Title           string // 聊天标题
	Model           string // 模型名称
	ReasoningEffort string // 推理强度
	VoiceMode       bool   // 是否启用语音模式
}

// Service 聊天服务接口，定义了聊天管理的核心操作
type Service interface {
	pubsub.Subscriber[Chat]
	// Create 创建新聊天
	Create(ctx context.Context, params CreateChatParams) (Chat, error)
	// Get 根据ID获取聊天
	Get(ctx context.Context, id string) (Chat, error)
	// List 按最近更新时间倒序列出所有聊天
	List(ctx context.Context) ([]Chat, error)
	// Save 保存聊天的全部字段
	Save(ctx context.Context, chat Chat) (Chat, error)
	// Rename 重命名聊天
	Rename(ctx context.Context, id, title string) error
	// Delete 删除聊天及其全部消息
	Delete(ctx context.Context, id string) error
	// AddUsage 累加一轮对话的令牌用量与成本
	AddUsage(ctx context.Context, id string, usage message.Usage) (Chat, error)
	// MarkHasImages 标记聊天包含图片内容
	MarkHasImages(ctx context.Context, id string) error
	// TotalCost 汇总所有聊天的成本
	TotalCost(ctx context.Context) (float64, error)
}

// service 聊天服务的具体实现
type service struct {
	*pubsub.Broker[Chat]
	q db.Querier
}

// NewService 创建新的聊天服务实例
func NewService(q db.Querier) Service {
	return &service{
		Broker: pubsub.NewBroker[Chat](),
		q:      q,
	}
}

// Create 创建新聊天并保存到数据库
func (s *service) Create(ctx context.Context, params CreateChatParams) (Chat, error) {
	dbChat, err := s.q.CreateChat(ctx, db.CreateChatParams{
		ID:              uuid.New().String(),
		Title:           params.Title,
		Model:           params.Model,
		ReasoningEffort: params.ReasoningEffort,
		VoiceMode:       boolToInt64(params.VoiceMode),
	})
	if err != nil {
		return Chat{}, err
	}
	chat := s.fromDBItem(dbChat)
	s.Publish(pubsub.CreatedEvent, chat)
	return chat, nil
}

// Get 根据ID获取聊天
func (s *service) Get(ctx context.Context, id string) (Chat, error) {
	dbChat, err := s.q.GetChatByID(ctx, id)
	if err != nil {
		return Chat{}, err
	}
	return s.fromDBItem(dbChat), nil
}

// List 按最近更新时间倒序列出所有聊天
func (s *service) List(ctx context.Context) ([]Chat, error) {
	dbChats, err := s.q.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	chats := make([]Chat, len(dbChats))
	for i, dbChat := range dbChats {
		chats[i] = s.fromDBItem(dbChat)
	}
	return chats, nil
}

// Save 保存聊天的全部字段
// 若聊天已被删除则静默跳过，避免与删除操作竞态时产生噪声错误
func (s *service) Save(ctx context.Context, chat Chat) (Chat, error) {
	dbChat, err := s.q.UpdateChat(ctx, db.UpdateChatParams{
		ID:               chat.ID,
		Title:            chat.Title,
		Model:            chat.Model,
		ReasoningEffort:  chat.ReasoningEffort,
		VoiceMode:        boolToInt64(chat.VoiceMode),
		HasImages:        boolToInt64(chat.HasImages),
		PromptTokens:     chat.PromptTokens,
		CompletionTokens: chat.CompletionTokens,
		Cost:             chat.Cost,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("保存时聊天已不存在，跳过", "chat_id", chat.ID)
			return chat, nil
		}
		return Chat{}, err
	}
	saved := s.fromDBItem(dbChat)
	s.Publish(pubsub.UpdatedEvent, saved)
	return saved, nil
}

// Rename 重命名聊天
func (s *service) Rename(ctx context.Context, id, title string) error {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	chat.Title = title
	_, err = s.Save(ctx, chat)
	return err
}

// Delete 删除聊天及其全部消息
func (s *service) Delete(ctx context.Context, id string) error {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// 外键级联会一并删除消息记录，这里显式删除以保证
	// 在未启用外键的连接上也有一致行为
	if err := s.q.DeleteChatMessages(ctx, id); err != nil {
		return err
	}
	if err := s.q.DeleteChat(ctx, id); err != nil {
		return err
	}
	s.Publish(pubsub.DeletedEvent, chat)
	return nil
}

// AddUsage 累加一轮对话的令牌用量与成本
// 成本采用未知值占优规则：本轮成本未知或聊天已有未知成本时，
// 累计成本固定为 message.UnknownCost
func (s *service) AddUsage(ctx context.Context, id string, usage message.Usage) (Chat, error) {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return Chat{}, err
	}
	chat.PromptTokens += usage.PromptTokens
	chat.CompletionTokens += usage.CompletionTokens
	if usage.Cost == message.UnknownCost || chat.Cost == message.UnknownCost {
		chat.Cost = message.UnknownCost
	} else {
		chat.Cost += usage.Cost
	}
	return s.Save(ctx, chat)
}

// MarkHasImages 标记聊天包含图片内容
func (s *service) MarkHasImages(ctx context.Context, id string) error {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if chat.HasImages {
		return nil
	}
	chat.HasImages = true
	_, err = s.Save(ctx, chat)
	return err
}

// TotalCost 汇总所有聊天的成本
// 任意聊天的成本未知时，总成本也为 message.UnknownCost
func (s *service) TotalCost(ctx context.Context) (float64, error) {
	chats, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, chat := range chats {
		if chat.Cost == message.UnknownCost {
			return message.UnknownCost, nil
		}
		total += chat.Cost
	}
	return total, nil
}

// fromDBItem 将数据库记录转换为聊天对象
func (s *service) fromDBItem(item db.Chat) Chat {
	return Chat{
		ID:               item.ID,
		Title:            item.Title,
		Model:            item.Model,
		ReasoningEffort:  item.ReasoningEffort,
		VoiceMode:        item.VoiceMode != 0,
		HasImages:        item.HasImages != 0,
		PromptTokens:     item.PromptTokens,
		CompletionTokens: item.CompletionTokens,
		Cost:             item.Cost,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
