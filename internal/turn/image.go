package turn

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/purpose168/parley-cn/internal/chat"
	"github.com/purpose168/parley-cn/internal/imagecache"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/provider"
	"github.com/purpose168/parley-cn/internal/stream"
)

// ImageParams 图片回合的生成参数
type ImageParams struct {
	Prompt      string
	Model       string
	Quality     string // low/medium/high
	AspectRatio string // 如 "1:1"、"16:9"
	// Streaming 是否请求增量质量的中间图
	Streaming bool
}

// startImageTurn 创建占位消息与会话记录，并在后台启动图片回合协程
func (c *Coordinator) startImageTurn(target chat.Chat, userMessageID string, freshChat bool, params ImageParams) (*Turn, error) {
	placeholder, err := c.reconciler.CreatePlaceholder(context.Background(), target.ID, params.Model)
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
		err := c.runImageTurn(turnCtx, target, t, freshChat, params)
		// 会话必须先于回合完成信号移除，等待方看到的状态才是终态
		c.sessions.Remove(target.ID)
		t.complete(err)
	}()
	return t, nil
}

// runImageTurn 执行图片回合的主循环
// 增量图总是整体替换缓存里的上一张，消息只保留最新引用
func (c *Coordinator) runImageTurn(turnCtx context.Context, target chat.Chat, t *Turn, freshChat bool, params ImageParams) error {
	bg := context.Background()

	imgContext, generationID, err := c.buildImageContext(turnCtx, target.ID, t.UserMessageID)
	if err != nil {
		c.rollback(target.ID, t.UserMessageID, t.PlaceholderID, freshChat, err)
		return err
	}

	imgStream, err := c.provider.StreamImage(turnCtx, provider.ImageRequest{
		Prompt:       params.Prompt,
		Model:        params.Model,
		Quality:      params.Quality,
		AspectRatio:  params.AspectRatio,
		Streaming:    params.Streaming,
		Context:      imgContext,
		GenerationID: generationID,
	})
	if err != nil {
		if turnCtx.Err() != nil {
			return c.finishCanceledImage(bg, target, t, message.ImageContent{})
		}
		c.rollback(target.ID, t.UserMessageID, t.PlaceholderID, freshChat, err)
		return err
	}
	defer imgStream.Close()

	// latest 最近一次落进缓存的图片，取消时作为保留候选
	var latest message.ImageContent
	var latestID string
	var final *message.ImageContent

	for imgStream.Next() {
		if turnCtx.Err() != nil {
			break
		}
		event := imgStream.Current()
		cacheID, err := c.cache.Store(event.B64)
		if err != nil {
			slog.Warn("缓存生成图片失败", "chat_id", target.ID, "error", err)
			continue
		}
		// 新图落地后上一张中间图随即作废
		if latestID != "" && latestID != cacheID {
			if err := c.cache.Delete(latestID); err != nil {
				slog.Warn("清理过期中间图失败", "cache_id", latestID, "error", err)
			}
		}
		latestID = cacheID
		latest = message.ImageContent{
			CacheRef:     imagecache.Ref(cacheID),
			MIMEType:     event.MIMEType,
			GenerationID: event.GenerationID,
			Progress:     event.Progress,
		}

		switch event.Type {
		case provider.ImageEventComplete:
			img := latest
			final = &img
		case provider.ImageEventPartial:
			c.sessions.Update(target.ID, func(s *stream.Session) {
				s.IsLoading = false
				s.IsStreaming = true
			})
			if err := c.reconciler.UpdateImageProgress(bg, t.PlaceholderID, latest); err != nil {
				slog.Warn("更新图片进度失败", "message_id", t.PlaceholderID, "error", err)
			}
		}
	}
	streamErr := imgStream.Err()

	canceled := turnCtx.Err() != nil || errors.Is(streamErr, context.Canceled)
	switch {
	case canceled:
		return c.finishCanceledImage(bg, target, t, latest)

	case streamErr != nil:
		if latestID != "" {
			if err := c.cache.Delete(latestID); err != nil {
				slog.Warn("清理失败回合的中间图失败", "cache_id", latestID, "error", err)
			}
		}
		c.rollback(target.ID, t.UserMessageID, t.PlaceholderID, freshChat, streamErr)
		return streamErr

	case final == nil:
		// 流正常结束却没有最终图，定稿为信息性消息
		finalMsg := message.Message{Model: params.Model}
		finalMsg.SetContent(emptyReplyText)
		finalMsg.SetFinish(message.Finish{Reason: message.FinishReasonEmpty, Time: time.Now().Unix()})
		_, err := c.reconciler.ReplacePlaceholder(bg, target.ID, t.PlaceholderID, finalMsg)
		return err

	default:
		finalMsg := message.Message{Model: params.Model, GenerationID: final.GenerationID}
		finalMsg.SetImage(*final)
		finalMsg.SetFinish(message.Finish{Reason: message.FinishReasonEndTurn, Time: time.Now().Unix()})
		if _, err := c.reconciler.ReplacePlaceholder(bg, target.ID, t.PlaceholderID, finalMsg); err != nil {
			return err
		}
		if err := c.chats.MarkHasImages(bg, target.ID); err != nil {
			slog.Warn("标记聊天含图片失败", "chat_id", target.ID, "error", err)
		}
		return nil
	}
}

// finishCanceledImage 图片回合取消路径的定稿
// 已有中间图时保留最近一张并标记为已取消
func (c *Coordinator) finishCanceledImage(ctx context.Context, target chat.Chat, t *Turn, latest message.ImageContent) error {
	if latest.CacheRef == "" {
		if err := c.reconciler.DropPlaceholder(ctx, t.PlaceholderID); err != nil {
			slog.Warn("丢弃占位消息失败", "message_id", t.PlaceholderID, "error", err)
		}
		return nil
	}
	final := message.Message{GenerationID: latest.GenerationID}
	final.SetImage(latest)
	final.SetFinish(message.Finish{
		Reason:  message.FinishReasonCanceled,
		Time:    time.Now().Unix(),
		Message: "用户取消了生成",
	})
	if _, err := c.reconciler.ReplacePlaceholder(ctx, target.ID, t.PlaceholderID, final); err != nil {
		return err
	}
	if err := c.chats.MarkHasImages(ctx, target.ID); err != nil {
		slog.Warn("标记聊天含图片失败", "chat_id", target.ID, "error", err)
	}
	return nil
}

// buildImageContext 组装多轮图片编辑的上下文
// 历史消息只携带文本，图片字节不重复上传；续接最近一次生成的ID
func (c *Coordinator) buildImageContext(ctx context.Context, chatID, currentUserMessageID string) ([]provider.ChatMessage, string, error) {
	msgs, err := c.contextMessages(ctx, chatID)
	if err != nil {
		return nil, "", err
	}
	var imgContext []provider.ChatMessage
	var generationID string
	for _, m := range msgs {
		if m.ID == currentUserMessageID {
			continue
		}
		if m.GenerationID != "" {
			generationID = m.GenerationID
		}
		text := m.Content().Text
		if text == "" {
			continue
		}
		imgContext = append(imgContext, provider.ChatMessage{Role: string(m.Role), Content: text})
	}
	return imgContext, generationID, nil
}
