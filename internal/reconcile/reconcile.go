// Package reconcile 负责把一轮对话产生的状态变化落到持久层
// 对不存在的聊天或消息保持容错，避免与删除操作竞态时把整轮对话拖垮
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/purpose168/parley-cn/internal/chat"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/stringext"
)

// titleLimit 由首条用户消息推导聊天标题时的最大长度
const titleLimit = 30

// Reconciler 对话状态与持久层之间的协调器
type Reconciler struct {
	chats    chat.Service
	messages message.Service
}

// New 创建协调器
func New(chats chat.Service, messages message.Service) *Reconciler {
	return &Reconciler{chats: chats, messages: messages}
}

// AppendUserMessage 追加用户消息
// chatID 为空时按需创建新聊天，标题取自消息文本的首行
// 返回消息所属的聊天与用户消息本身，以及聊天是否为本次新建
func (r *Reconciler) AppendUserMessage(ctx context.Context, chatID string, params chat.CreateChatParams, parts []message.ContentPart) (chat.Chat, message.Message, bool, error) {
	created := false
	var target chat.Chat
	if chatID == "" {
		params.Title = stringext.TruncateTitle(textOf(parts), titleLimit)
		newChat, err := r.chats.Create(ctx, params)
		if err != nil {
			return chat.Chat{}, message.Message{}, false, err
		}
		target = newChat
		created = true
	} else {
		existing, err := r.chats.Get(ctx, chatID)
		if err != nil {
			return chat.Chat{}, message.Message{}, false, err
		}
		target = existing
	}

	msg, err := r.messages.Create(ctx, target.ID, message.CreateMessageParams{
		Role:  message.User,
		Parts: parts,
	})
	if err != nil {
		// 刚创建的空聊天没有存在的意义，连同错误一起回收
		if created {
			if delErr := r.chats.Delete(ctx, target.ID); delErr != nil {
				slog.Warn("回收新建聊天失败", "chat_id", target.ID, "error", delErr)
			}
		}
		return chat.Chat{}, message.Message{}, false, err
	}
	return target, msg, created, nil
}

// AppendMessage 以已定稿状态追加一条消息
func (r *Reconciler) AppendMessage(ctx context.Context, chatID string, params message.CreateMessageParams) (message.Message, error) {
	params.Status = message.StatusFinal
	return r.messages.Create(ctx, chatID, params)
}

// CreatePlaceholder 创建助手回复的占位消息
func (r *Reconciler) CreatePlaceholder(ctx context.Context, chatID, model string) (message.Message, error) {
	return r.messages.Create(ctx, chatID, message.CreateMessageParams{
		Role:   message.Assistant,
		Status: message.StatusPending,
		Model:  model,
	})
}

// WritePlaceholder 把累积的回复文本写穿到占位消息
// 占位消息已不存在时静默跳过
func (r *Reconciler) WritePlaceholder(ctx context.Context, placeholderID, accumulated string) error {
	msg, err := r.messages.Get(ctx, placeholderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("占位消息已不存在，跳过写入", "message_id", placeholderID)
			return nil
		}
		return err
	}
	msg.SetContent(accumulated)
	return r.messages.Update(ctx, msg)
}

// UpdateImageProgress 更新占位消息中图片的生成进度
// 增量质量的图片总是整体替换为最新一份载荷
func (r *Reconciler) UpdateImageProgress(ctx context.Context, placeholderID string, img message.ImageContent) error {
	msg, err := r.messages.Get(ctx, placeholderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("占位消息已不存在，跳过图片进度", "message_id", placeholderID)
			return nil
		}
		return err
	}
	msg.SetImage(img)
	return r.messages.Update(ctx, msg)
}

// ReplacePlaceholder 以最终内容定稿占位消息
// 保留占位消息的ID与创建时间，使消息顺序不受定稿影响
// 占位消息ID已失效时回退到该聊天最后一条占位中的助手消息
// 连回退也找不到时说明聊天已被删除，静默跳过定稿
func (r *Reconciler) ReplacePlaceholder(ctx context.Context, chatID, placeholderID string, final message.Message) (message.Message, error) {
	target, err := r.findPlaceholder(ctx, chatID, placeholderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("占位消息与回退目标均不存在，跳过定稿", "chat_id", chatID, "message_id", placeholderID)
			return message.Message{}, nil
		}
		return message.Message{}, err
	}
	target.Parts = final.Parts
	target.Status = message.StatusFinal
	target.Model = final.Model
	target.GenerationID = final.GenerationID
	if target.FinishPart() == nil {
		target.SetFinish(message.Finish{Reason: message.FinishReasonEndTurn, Time: time.Now().Unix()})
	}
	if err := r.messages.Update(ctx, target); err != nil {
		return message.Message{}, err
	}
	return target, nil
}

// DropPlaceholder 丢弃占位消息
// 消息已不存在时视为成功
func (r *Reconciler) DropPlaceholder(ctx context.Context, placeholderID string) error {
	err := r.messages.Delete(ctx, placeholderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

// EditUserMessage 改写一条用户消息并截断其后的全部消息
// 文本部分被替换，图片部分原样保留
// 返回截断后该聊天剩余的消息与是否发生了截断
func (r *Reconciler) EditUserMessage(ctx context.Context, chatID, messageID, text string) ([]message.Message, bool, error) {
	msgs, err := r.messages.List(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	idx := -1
	for i, m := range msgs {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false, errors.New("要编辑的消息不存在")
	}
	if !msgs[idx].IsUser() {
		return nil, false, errors.New("只能编辑用户消息")
	}

	edited := msgs[idx]
	edited.SetContent(text)
	if err := r.messages.Update(ctx, edited); err != nil {
		return nil, false, err
	}
	msgs[idx] = edited

	// 逐条删除其后的消息，任何一条失败都不会丢掉已删除的进度
	truncated := false
	for _, m := range msgs[idx+1:] {
		if err := r.messages.Delete(ctx, m.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, truncated, err
		}
		truncated = true
	}
	return msgs[:idx+1], truncated, nil
}

// findPlaceholder 定位占位消息，ID失效时回退到最后一条占位中的助手消息
func (r *Reconciler) findPlaceholder(ctx context.Context, chatID, placeholderID string) (message.Message, error) {
	msg, err := r.messages.Get(ctx, placeholderID)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, err
	}
	slog.Debug("占位消息ID失效，回退到最后一条占位消息", "message_id", placeholderID)
	msgs, listErr := r.messages.List(ctx, chatID)
	if listErr != nil {
		return message.Message{}, listErr
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.Assistant && msgs[i].Status == message.StatusPending {
			return msgs[i], nil
		}
	}
	return message.Message{}, err
}

// textOf 提取内容部分中的文本
func textOf(parts []message.ContentPart) string {
	for _, p := range parts {
		if t, ok := p.(message.TextContent); ok {
			return t.Text
		}
	}
	return ""
}
