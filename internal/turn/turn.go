// Package turn 驱动完整的对话回合
// 从用户消息入库、流式接收，到定稿或回滚的全生命周期都在这里协调
package turn

import "errors"

var (
	// ErrChatBusy 聊天已有进行中的回合
	ErrChatBusy = errors.New("聊天正在生成回复，请先取消或等待完成")
	// ErrEmptyPrompt 用户消息为空
	ErrEmptyPrompt = errors.New("消息内容不能为空")
	// ErrMissingAPIKey 未配置 API 密钥
	ErrMissingAPIKey = errors.New("未配置 API 密钥")
)

// Turn 一个进行中的对话回合
type Turn struct {
	// ChatID 回合所属的聊天，新建聊天时由回合启动方填入
	ChatID string
	// UserMessageID 本回合的用户消息
	UserMessageID string
	// PlaceholderID 正在生成的助手占位消息
	PlaceholderID string

	done chan error
}

func newTurn(chatID, userMessageID, placeholderID string) *Turn {
	return &Turn{
		ChatID:        chatID,
		UserMessageID: userMessageID,
		PlaceholderID: placeholderID,
		done:          make(chan error, 1),
	}
}

// Done 回合结束时收到最终结果
// 正常定稿与用户取消都视为成功，通道只投递一次
func (t *Turn) Done() <-chan error {
	return t.done
}

// complete 投递回合结果
func (t *Turn) complete(err error) {
	t.done <- err
	close(t.done)
}

// Wait 阻塞等待回合结束
func (t *Turn) Wait() error {
	return <-t.done
}
