package turn

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/purpose168/parley-cn/internal/chat"
	"github.com/purpose168/parley-cn/internal/config"
	"github.com/purpose168/parley-cn/internal/csync"
	"github.com/purpose168/parley-cn/internal/imagecache"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/reconcile"
	"github.com/purpose168/parley-cn/internal/stream"
)

// Coordinator 对话回合协调器
// 持有全部领域服务，保证每个聊天同一时刻至多一个进行中的回合
type Coordinator struct {
	cfg        *config.Config
	chats      chat.Service
	messages   message.Service
	reconciler *reconcile.Reconciler
	sessions   *stream.Table
	cache      *imagecache.Cache
	provider   Provider

	// activeChat 当前正在查看的聊天，切换视图不读缓存，直接查库
	activeChat *csync.Value[string]

	// admit 串行化回合准入，防止同一聊天并发启动两个回合
	admit sync.Mutex
	// turns 跟踪所有进行中的回合协程
	turns sync.WaitGroup
}

// NewCoordinator 创建回合协调器
func NewCoordinator(
	cfg *config.Config,
	chats chat.Service,
	messages message.Service,
	sessions *stream.Table,
	cache *imagecache.Cache,
	p Provider,
) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		chats:      chats,
		messages:   messages,
		reconciler: reconcile.New(chats, messages),
		sessions:   sessions,
		cache:      cache,
		provider:   p,
		activeChat: csync.NewValue(""),
	}
}

// Sessions 暴露会话状态表供界面层订阅
func (c *Coordinator) Sessions() *stream.Table {
	return c.sessions
}

// SetActiveChat 切换当前查看的聊天
// 传空字符串表示回到聊天列表
func (c *Coordinator) SetActiveChat(chatID string) {
	c.activeChat.Set(chatID)
}

// ActiveChat 当前正在查看的聊天ID
func (c *Coordinator) ActiveChat() string {
	return c.activeChat.Get()
}

// View 某个聊天在当前时刻的完整读取结果
type View struct {
	Chat     chat.Chat
	Messages []message.Message
	// Session 进行中的会话状态，没有回合在进行时为 nil
	Session *stream.Session
}

// ActiveView 读取当前聊天的投影
// 每次调用都重新查库并合并会话状态表，切换视图不影响后台回合
func (c *Coordinator) ActiveView(ctx context.Context) (View, error) {
	chatID := c.ActiveChat()
	if chatID == "" {
		return View{}, nil
	}
	target, err := c.chats.Get(ctx, chatID)
	if err != nil {
		return View{}, err
	}
	msgs, err := c.messages.List(ctx, chatID)
	if err != nil {
		return View{}, err
	}
	view := View{Chat: target, Messages: msgs}
	if session, ok := c.sessions.Get(chatID); ok {
		view.Session = &session
	}
	return view, nil
}

// Send 发起一个文本回合
// chatID 为空时按需创建新聊天，回合在后台异步执行
func (c *Coordinator) Send(ctx context.Context, chatID, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	c.admit.Lock()
	defer c.admit.Unlock()
	if chatID != "" {
		if session, ok := c.sessions.Get(chatID); ok && session.Active() {
			return nil, ErrChatBusy
		}
	}

	target, userMsg, created, err := c.reconciler.AppendUserMessage(ctx, chatID, chat.CreateChatParams{
		Model:           c.cfg.Defaults.Model,
		ReasoningEffort: c.cfg.Defaults.ReasoningEffort,
		VoiceMode:       c.cfg.Defaults.VoiceMode,
	}, []message.ContentPart{message.TextContent{Text: text}})
	if err != nil {
		return nil, err
	}

	return c.startTextTurn(target, userMsg.ID, created)
}

// Regenerate 编辑一条用户消息并重新生成其后的回复
// 原消息之后的所有消息被截断，图片部分保留
func (c *Coordinator) Regenerate(ctx context.Context, chatID, messageID, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	c.admit.Lock()
	defer c.admit.Unlock()
	if session, ok := c.sessions.Get(chatID); ok && session.Active() {
		return nil, ErrChatBusy
	}

	target, err := c.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, _, err := c.reconciler.EditUserMessage(ctx, chatID, messageID, text); err != nil {
		return nil, err
	}
	return c.startTextTurn(target, messageID, false)
}

// SendImage 发起一个图片生成回合
func (c *Coordinator) SendImage(ctx context.Context, chatID string, req ImageParams) (*Turn, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	c.admit.Lock()
	defer c.admit.Unlock()
	if chatID != "" {
		if session, ok := c.sessions.Get(chatID); ok && session.Active() {
			return nil, ErrChatBusy
		}
	}

	target, userMsg, created, err := c.reconciler.AppendUserMessage(ctx, chatID, chat.CreateChatParams{
		Model:           req.Model,
		ReasoningEffort: c.cfg.Defaults.ReasoningEffort,
	}, []message.ContentPart{message.TextContent{Text: req.Prompt}})
	if err != nil {
		return nil, err
	}
	return c.startImageTurn(target, userMsg.ID, created, req)
}

// Cancel 取消聊天当前的回合
// 没有进行中的回合时是空操作
func (c *Coordinator) Cancel(chatID string) {
	session, ok := c.sessions.Get(chatID)
	if !ok || session.Cancel == nil {
		return
	}
	slog.Info("取消回合", "chat_id", chatID)
	session.Cancel()
}

// DeleteChat 删除聊天，进行中的回合先取消
func (c *Coordinator) DeleteChat(ctx context.Context, chatID string) error {
	c.Cancel(chatID)
	if c.ActiveChat() == chatID {
		c.SetActiveChat("")
	}
	return c.chats.Delete(ctx, chatID)
}

// Shutdown 取消所有进行中的回合并等待它们收尾
func (c *Coordinator) Shutdown() {
	for _, chatID := range c.sessions.ChatIDs() {
		c.Cancel(chatID)
	}
	c.turns.Wait()
}

// contextMessages 组装发给模型的上下文
// 只携带已定稿消息的文本部分，图片字节不进上下文
func (c *Coordinator) contextMessages(ctx context.Context, chatID string) ([]message.Message, error) {
	msgs, err := c.messages.List(ctx, chatID)
	if err != nil {
		return nil, err
	}
	finals := msgs[:0]
	for _, m := range msgs {
		if m.Status == message.StatusFinal {
			finals = append(finals, m)
		}
	}
	return finals, nil
}
