package turn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/purpose168/parley-cn/internal/chat"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/persist"
	"github.com/purpose168/parley-cn/internal/provider"
	"github.com/purpose168/parley-cn/internal/stream"
)

// emptyReplyText 模型未产出任何内容时写入的提示
const emptyReplyText = "未生成任何内容"

// reasoningDowngrade 推理强度的降级阶梯
var reasoningDowngrade = map[string]string{
	"high":   "medium",
	"medium": "low",
	"low":    "no-reasoning",
}

// startTextTurn 创建占位消息与会话记录，并在后台启动回合协程
func (c *Coordinator) startTextTurn(target chat.Chat, userMessageID string, freshChat bool) (*Turn, error) {
	placeholder, err := c.reconciler.CreatePlaceholder(context.Background(), target.ID, target.Model)
	if err != nil {
		c.rollback(target.ID, userMessageID, "", freshChat, err)
		return nil, err
	}

	turnCtx, cancel := context.WithCancel(context.Background())
	c.sessions.Create(stream.Session{
		ChatID:        target.ID,
		IsLoading:     true,
		PlaceholderID: placeholder.ID,
		Cancel:        cancel,
	})

	t := newTurn(target.ID, userMessageID, placeholder.ID)
	c.turns.Add(1)
	go func() {
		defer c.turns.Done()
		defer cancel()
		err := c.runTextTurn(turnCtx, target, t, freshChat)
		// 会话必须先于回合完成信号移除，等待方看到的状态才是终态
		c.sessions.Remove(target.ID)
		t.complete(err)
	}()
	return t, nil
}

// runTextTurn 执行文本回合的主循环
func (c *Coordinator) runTextTurn(turnCtx context.Context, target chat.Chat, t *Turn, freshChat bool) error {
	bg := context.Background()

	reqMsgs, err := c.buildChatContext(turnCtx, target.ID)
	if err != nil {
		c.rollback(target.ID, t.UserMessageID, t.PlaceholderID, freshChat, err)
		return err
	}

	temperature := c.cfg.Temperature
	chatStream, err := c.openChatStream(turnCtx, provider.ChatRequest{
		Messages:        reqMsgs,
		Model:           target.Model,
		Temperature:     &temperature,
		ReasoningEffort: target.ReasoningEffort,
		MaxTokens:       c.cfg.MaxOutputTokens,
	})
	if err != nil {
		if turnCtx.Err() != nil {
			return c.finishCanceled(bg, target, t, "")
		}
		c.rollback(target.ID, t.UserMessageID, t.PlaceholderID, freshChat, err)
		return err
	}
	defer chatStream.Close()

	// 占位消息的写穿按时间窗口节流，总是写当时的最新快照
	syncer := persist.NewSyncer(c.cfg.Debounce.Placeholder, func() error {
		session, ok := c.sessions.Get(target.ID)
		if !ok {
			return nil
		}
		return c.reconciler.WritePlaceholder(context.Background(), t.PlaceholderID, session.StreamingMessage)
	})
	defer syncer.Close()

	var accumulated strings.Builder
	var usage *message.Usage
	for chatStream.Next() {
		// 取消优先于迟到的数据块
		if turnCtx.Err() != nil {
			break
		}
		chunk := chatStream.Current()
		if chunk.Usage != nil {
			u := *chunk.Usage
			usage = &u
		}
		if chunk.Delta == "" {
			continue
		}
		accumulated.WriteString(chunk.Delta)
		acc := accumulated.String()
		c.sessions.Update(target.ID, func(s *stream.Session) {
			s.IsLoading = false
			s.IsStreaming = true
			s.StreamingMessage = acc
		})
		syncer.Schedule()
	}
	streamErr := chatStream.Err()

	canceled := turnCtx.Err() != nil || errors.Is(streamErr, context.Canceled)
	switch {
	case canceled:
		syncer.Discard()
		return c.finishCanceled(bg, target, t, accumulated.String())

	case streamErr != nil:
		syncer.Discard()
		c.rollback(target.ID, t.UserMessageID, t.PlaceholderID, freshChat, streamErr)
		return streamErr

	case accumulated.Len() == 0:
		// 空流定稿为一条信息性消息，不算错误
		syncer.Discard()
		final := message.Message{Model: target.Model}
		final.SetContent(emptyReplyText)
		final.SetFinish(message.Finish{Reason: message.FinishReasonEmpty, Time: time.Now().Unix()})
		_, err := c.reconciler.ReplacePlaceholder(bg, target.ID, t.PlaceholderID, final)
		return err

	default:
		syncer.Discard()
		final := message.Message{Model: target.Model}
		final.SetContent(accumulated.String())
		if usage != nil {
			usage.Cost = c.cfg.CostFor(target.Model, usage.PromptTokens, usage.CompletionTokens)
			final.Parts = append(final.Parts, *usage)
		}
		final.SetFinish(message.Finish{Reason: message.FinishReasonEndTurn, Time: time.Now().Unix()})
		if _, err := c.reconciler.ReplacePlaceholder(bg, target.ID, t.PlaceholderID, final); err != nil {
			return err
		}
		if usage != nil {
			if _, err := c.chats.AddUsage(bg, target.ID, *usage); err != nil {
				slog.Warn("累加聊天用量失败", "chat_id", target.ID, "error", err)
			}
		}
		return nil
	}
}

// finishCanceled 取消路径的定稿
// 有部分内容时保留并标记为已取消，否则直接丢弃占位消息
func (c *Coordinator) finishCanceled(ctx context.Context, target chat.Chat, t *Turn, accumulated string) error {
	if accumulated == "" {
		if err := c.reconciler.DropPlaceholder(ctx, t.PlaceholderID); err != nil {
			slog.Warn("丢弃占位消息失败", "message_id", t.PlaceholderID, "error", err)
		}
		return nil
	}
	final := message.Message{Model: target.Model}
	final.SetContent(accumulated)
	final.SetFinish(message.Finish{
		Reason:  message.FinishReasonCanceled,
		Time:    time.Now().Unix(),
		Message: "用户取消了生成",
	})
	_, err := c.reconciler.ReplacePlaceholder(ctx, target.ID, t.PlaceholderID, final)
	return err
}

// rollback 回合失败后的清理
// 模型不受支持时连用户消息一起回滚，本回合新建的空聊天也一并删除
func (c *Coordinator) rollback(chatID, userMessageID, placeholderID string, freshChat bool, cause error) {
	bg := context.Background()
	if placeholderID != "" {
		if err := c.reconciler.DropPlaceholder(bg, placeholderID); err != nil {
			slog.Warn("丢弃占位消息失败", "message_id", placeholderID, "error", err)
		}
	}
	if !errors.Is(cause, provider.ErrUnsupportedModel) {
		return
	}
	if userMessageID != "" {
		if err := c.messages.Delete(bg, userMessageID); err != nil {
			slog.Warn("回滚用户消息失败", "message_id", userMessageID, "error", err)
		}
	}
	if freshChat {
		if err := c.chats.Delete(bg, chatID); err != nil {
			slog.Warn("回收新建聊天失败", "chat_id", chatID, "error", err)
		}
	}
}

// buildChatContext 组装发给模型的消息上下文
func (c *Coordinator) buildChatContext(ctx context.Context, chatID string) ([]provider.ChatMessage, error) {
	msgs, err := c.contextMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	reqMsgs := make([]provider.ChatMessage, 0, len(msgs)+1)
	if c.cfg.SystemPrompt != "" {
		reqMsgs = append(reqMsgs, provider.ChatMessage{
			Role:    string(message.System),
			Content: c.cfg.SystemPrompt,
		})
	}
	for _, m := range msgs {
		text := m.Content().Text
		if text == "" {
			continue
		}
		reqMsgs = append(reqMsgs, provider.ChatMessage{Role: string(m.Role), Content: text})
	}
	return reqMsgs, nil
}

// openChatStream 打开聊天流，推理强度不受支持时沿阶梯降级重试
func (c *Coordinator) openChatStream(ctx context.Context, req provider.ChatRequest) (ChatStreamer, error) {
	for {
		chatStream, err := c.provider.StreamChat(ctx, req)
		if err == nil {
			return chatStream, nil
		}
		if !errors.Is(err, provider.ErrReasoningUnsupported) {
			return nil, err
		}
		next, ok := reasoningDowngrade[req.ReasoningEffort]
		if !ok {
			return nil, err
		}
		slog.Info("推理强度不受支持，降级重试", "model", req.Model, "from", req.ReasoningEffort, "to", next)
		req.ReasoningEffort = next
	}
}
