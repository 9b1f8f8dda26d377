package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/purpose168/parley-cn/internal/chat"
	"github.com/purpose168/parley-cn/internal/config"
	"github.com/purpose168/parley-cn/internal/db"
	"github.com/purpose168/parley-cn/internal/imagecache"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/purpose168/parley-cn/internal/provider"
	"github.com/purpose168/parley-cn/internal/stream"
	"github.com/stretchr/testify/require"
)

// fakeChatStream 脚本化的聊天流
// gate 不为空时每个数据块都要等一次放行信号，便于测试中途取消
type fakeChatStream struct {
	ctx     context.Context
	chunks  []provider.ChatChunk
	gate    chan struct{}
	tailErr error

	idx     int
	current provider.ChatChunk
	err     error
}

func (f *fakeChatStream) Next() bool {
	if f.err != nil || f.idx >= len(f.chunks) {
		if f.err == nil {
			f.err = f.tailErr
		}
		return false
	}
	if f.gate != nil {
		select {
		case <-f.ctx.Done():
			f.err = f.ctx.Err()
			return false
		case <-f.gate:
		}
	}
	f.current = f.chunks[f.idx]
	f.idx++
	return true
}

func (f *fakeChatStream) Current() provider.ChatChunk { return f.current }
func (f *fakeChatStream) Err() error                  { return f.err }
func (f *fakeChatStream) Close() error                { return nil }

// fakeProvider 按脚本响应的模型服务
type fakeProvider struct {
	mu       sync.Mutex
	requests []provider.ChatRequest
	// script 针对每次请求返回一个流或错误
	script func(req provider.ChatRequest) (*fakeChatStream, error)

	imageScript func(req provider.ImageRequest) (*fakeImageStream, error)
}

func (p *fakeProvider) StreamChat(ctx context.Context, req provider.ChatRequest) (ChatStreamer, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	s, err := p.script(req)
	if err != nil {
		return nil, err
	}
	s.ctx = ctx
	return s, nil
}

func (p *fakeProvider) StreamImage(ctx context.Context, req provider.ImageRequest) (ImageStreamer, error) {
	if p.imageScript == nil {
		return nil, errors.New("测试未配置图片脚本")
	}
	s, err := p.imageScript(req)
	if err != nil {
		return nil, err
	}
	s.ctx = ctx
	return s, nil
}

func (p *fakeProvider) recorded() []provider.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.ChatRequest(nil), p.requests...)
}

// textChunks 把若干文本增量包装为数据块序列，末尾附带用量
func textChunks(usage *message.Usage, deltas ...string) []provider.ChatChunk {
	chunks := make([]provider.ChatChunk, 0, len(deltas)+1)
	for _, d := range deltas {
		chunks = append(chunks, provider.ChatChunk{Delta: d})
	}
	if usage != nil {
		chunks = append(chunks, provider.ChatChunk{Usage: usage})
	}
	return chunks
}

// fixture 回合测试环境
type fixture struct {
	coordinator *Coordinator
	chats       chat.Service
	messages    message.Service
	provider    *fakeProvider
}

func newFixture(t *testing.T, p *fakeProvider) *fixture {
	t.Helper()
	conn, err := db.Connect(t.Context(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	q := db.New(conn)

	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		APIKey: "test-key",
		Defaults: config.Defaults{
			Model:           "gpt-5.1",
			ReasoningEffort: "medium",
		},
		Debounce: config.Debounce{
			Placeholder: 5 * time.Millisecond,
			Snapshot:    5 * time.Millisecond,
		},
		SystemPrompt: "测试系统提示",
		Pricing: map[string]config.ModelPricing{
			"gpt-5.1": {InputPerM: 1.25, OutputPerM: 10},
		},
	}

	chats := chat.NewService(q)
	messages := message.NewService(q)
	f := &fixture{
		coordinator: NewCoordinator(cfg, chats, messages, stream.NewTable(), cache, p),
		chats:       chats,
		messages:    messages,
		provider:    p,
	}
	t.Cleanup(f.coordinator.Shutdown)
	return f
}

// 新聊天的完整回合：建聊天、落用户消息、定稿助手消息、累加用量
func TestSend_FullTurnOnNewChat(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(
			&message.Usage{PromptTokens: 1_000_000, CompletionTokens: 100_000},
			"你好", "，世界！",
		)}, nil
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "给我讲个笑话")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())

	got, err := f.chats.Get(t.Context(), turn.ChatID)
	require.NoError(t, err)
	require.Equal(t, "给我讲个笑话", got.Title)
	require.Equal(t, int64(1_000_000), got.PromptTokens)
	require.Equal(t, int64(100_000), got.CompletionTokens)
	// gpt-5.1: 1.25 + 1.0 美元
	require.InDelta(t, 2.25, got.Cost, 1e-9)

	msgs, err := f.messages.List(t.Context(), turn.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].IsUser())
	require.Equal(t, "你好，世界！", msgs[1].Content().Text)
	require.Equal(t, message.StatusFinal, msgs[1].Status)
	require.Equal(t, message.FinishReasonEndTurn, msgs[1].FinishReason())
	require.NotNil(t, msgs[1].UsagePart())

	// 回合结束后会话记录必须清理干净
	_, ok := f.coordinator.Sessions().Get(turn.ChatID)
	require.False(t, ok)
}

// 上下文包含系统提示与全部已定稿消息
func TestSend_ContextIncludesHistory(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "回复")}, nil
	}}
	f := newFixture(t, p)

	first, err := f.coordinator.Send(t.Context(), "", "第一个问题")
	require.NoError(t, err)
	require.NoError(t, first.Wait())
	second, err := f.coordinator.Send(t.Context(), first.ChatID, "第二个问题")
	require.NoError(t, err)
	require.NoError(t, second.Wait())

	reqs := p.recorded()
	require.Len(t, reqs, 2)
	last := reqs[1]
	require.Equal(t, "system", last.Messages[0].Role)
	require.Equal(t, "测试系统提示", last.Messages[0].Content)
	// 第一轮的问答 + 第二轮的问题
	require.Len(t, last.Messages, 4)
	require.Equal(t, "第二个问题", last.Messages[3].Content)
}

// 同一聊天的并发回合被拒绝，不同聊天互不影响
func TestSend_BusyChatRejected(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "慢回复"), gate: gate}, nil
	}}
	f := newFixture(t, p)

	first, err := f.coordinator.Send(t.Context(), "", "占住聊天")
	require.NoError(t, err)

	_, err = f.coordinator.Send(t.Context(), first.ChatID, "插队")
	require.ErrorIs(t, err, ErrChatBusy)

	// 其他聊天不受影响
	other, err := f.coordinator.Send(t.Context(), "", "另一个聊天")
	require.NoError(t, err)

	close(gate)
	require.NoError(t, first.Wait())
	require.NoError(t, other.Wait())
}

// 取消时已有部分输出：保留并标记为已取消
func TestCancel_KeepsPartialOutput(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "部分内容", "不会到达"), gate: gate}, nil
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "开始")
	require.NoError(t, err)

	// 放行第一个数据块并等它应用到会话
	gate <- struct{}{}
	require.Eventually(t, func() bool {
		session, ok := f.coordinator.Sessions().Get(turn.ChatID)
		return ok && session.StreamingMessage == "部分内容"
	}, time.Second, time.Millisecond)

	f.coordinator.Cancel(turn.ChatID)
	require.NoError(t, turn.Wait())

	msgs, err := f.messages.List(t.Context(), turn.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "部分内容", msgs[1].Content().Text)
	require.Equal(t, message.FinishReasonCanceled, msgs[1].FinishReason())
	require.Equal(t, message.StatusFinal, msgs[1].Status)
}

// 取消时尚无任何输出：丢弃占位消息，保留用户消息
func TestCancel_NoOutputDropsPlaceholder(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "永远不放行"), gate: gate}, nil
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "取消我")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := f.coordinator.Sessions().Get(turn.ChatID)
		return ok
	}, time.Second, time.Millisecond)

	f.coordinator.Cancel(turn.ChatID)
	require.NoError(t, turn.Wait())

	msgs, err := f.messages.List(t.Context(), turn.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].IsUser())
}

// 对没有进行中回合的聊天取消是空操作
func TestCancel_IdleChatIsNoop(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "好")}, nil
	}}
	f := newFixture(t, p)

	f.coordinator.Cancel("不存在的聊天")

	turn, err := f.coordinator.Send(t.Context(), "", "正常发送")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())
	f.coordinator.Cancel(turn.ChatID)
}

// 模型不受支持：回滚用户消息，本回合新建的空聊天一并删除
func TestSend_UnsupportedModelRollsBackFreshChat(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return nil, provider.ErrUnsupportedModel
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "用坏模型")
	require.NoError(t, err)
	require.ErrorIs(t, turn.Wait(), provider.ErrUnsupportedModel)

	chats, err := f.chats.List(t.Context())
	require.NoError(t, err)
	require.Empty(t, chats)
}

// 模型不受支持但聊天已有历史：只回滚本轮用户消息，聊天保留
func TestSend_UnsupportedModelKeepsExistingChat(t *testing.T) {
	t.Parallel()
	var fail bool
	p := &fakeProvider{}
	p.script = func(req provider.ChatRequest) (*fakeChatStream, error) {
		if fail {
			return nil, provider.ErrUnsupportedModel
		}
		return &fakeChatStream{chunks: textChunks(nil, "第一轮回复")}, nil
	}
	f := newFixture(t, p)

	first, err := f.coordinator.Send(t.Context(), "", "第一轮")
	require.NoError(t, err)
	require.NoError(t, first.Wait())

	fail = true
	second, err := f.coordinator.Send(t.Context(), first.ChatID, "第二轮")
	require.NoError(t, err)
	require.ErrorIs(t, second.Wait(), provider.ErrUnsupportedModel)

	msgs, err := f.messages.List(t.Context(), first.ChatID)
	require.NoError(t, err)
	// 只剩第一轮的问答
	require.Len(t, msgs, 2)
}

// 一般错误：保留用户消息，丢弃占位消息
func TestSend_GenericErrorKeepsUserMessage(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{
			chunks:  textChunks(nil, "写了一半"),
			tailErr: &provider.StreamError{Message: "上游超载"},
		}, nil
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "会失败的请求")
	require.NoError(t, err)
	var streamErr *provider.StreamError
	require.ErrorAs(t, turn.Wait(), &streamErr)

	msgs, err := f.messages.List(t.Context(), turn.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].IsUser())
}

// 空流定稿为一条信息性消息
func TestSend_EmptyStreamYieldsInfoMessage(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{}, nil
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "不会有回复")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())

	msgs, err := f.messages.List(t.Context(), turn.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, emptyReplyText, msgs[1].Content().Text)
	require.Equal(t, message.FinishReasonEmpty, msgs[1].FinishReason())
}

// 推理强度不受支持时沿阶梯降级重试
func TestSend_ReasoningDowngrade(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	p.script = func(req provider.ChatRequest) (*fakeChatStream, error) {
		if req.ReasoningEffort == "medium" || req.ReasoningEffort == "low" {
			return nil, provider.ErrReasoningUnsupported
		}
		return &fakeChatStream{chunks: textChunks(nil, "降级后的回复")}, nil
	}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "需要降级")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())

	reqs := p.recorded()
	require.Len(t, reqs, 3)
	require.Equal(t, "medium", reqs[0].ReasoningEffort)
	require.Equal(t, "low", reqs[1].ReasoningEffort)
	require.Equal(t, "no-reasoning", reqs[2].ReasoningEffort)
}

// 编辑用户消息后重新生成：旧尾部被截断，新回复落在其后
func TestRegenerate(t *testing.T) {
	t.Parallel()
	var round int
	p := &fakeProvider{}
	p.script = func(req provider.ChatRequest) (*fakeChatStream, error) {
		round++
		if round == 1 {
			return &fakeChatStream{chunks: textChunks(nil, "旧回复")}, nil
		}
		return &fakeChatStream{chunks: textChunks(nil, "新回复")}, nil
	}
	f := newFixture(t, p)

	first, err := f.coordinator.Send(t.Context(), "", "原始问题")
	require.NoError(t, err)
	require.NoError(t, first.Wait())

	redo, err := f.coordinator.Regenerate(t.Context(), first.ChatID, first.UserMessageID, "修改后的问题")
	require.NoError(t, err)
	require.NoError(t, redo.Wait())

	msgs, err := f.messages.List(t.Context(), first.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "修改后的问题", msgs[0].Content().Text)
	require.Equal(t, "新回复", msgs[1].Content().Text)
}

// 删除聊天会先取消进行中的回合
func TestDeleteChat_CancelsActiveTurn(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "没完没了"), gate: gate}, nil
	}}
	f := newFixture(t, p)

	turn, err := f.coordinator.Send(t.Context(), "", "删除测试")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := f.coordinator.Sessions().Get(turn.ChatID)
		return ok
	}, time.Second, time.Millisecond)

	f.coordinator.SetActiveChat(turn.ChatID)
	require.NoError(t, f.coordinator.DeleteChat(t.Context(), turn.ChatID))
	require.NoError(t, turn.Wait())

	// 视图回到聊天列表
	require.Empty(t, f.coordinator.ActiveChat())
	chats, err := f.chats.List(t.Context())
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestSend_Validation(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{}, nil
	}}
	f := newFixture(t, p)

	_, err := f.coordinator.Send(t.Context(), "", "   ")
	require.ErrorIs(t, err, ErrEmptyPrompt)

	f.coordinator.cfg.APIKey = ""
	_, err = f.coordinator.Send(t.Context(), "", "没有密钥")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

// 多个聊天可以同时流式接收
func TestSend_ConcurrentChats(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		return &fakeChatStream{chunks: textChunks(nil, "并发回复")}, nil
	}}
	f := newFixture(t, p)

	var turns []*Turn
	for range 5 {
		turn, err := f.coordinator.Send(t.Context(), "", "并发问题")
		require.NoError(t, err)
		turns = append(turns, turn)
	}
	for _, turn := range turns {
		require.NoError(t, turn.Wait())
	}

	chats, err := f.chats.List(t.Context())
	require.NoError(t, err)
	require.Len(t, chats, 5)
}

// 切换视图只是重新读取投影，不影响其他聊天的后台回合
func TestActiveView_SwitchingDoesNotDisturbStreams(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	p := &fakeProvider{script: func(req provider.ChatRequest) (*fakeChatStream, error) {
		last := req.Messages[len(req.Messages)-1].Content
		if last == "问题甲" {
			return &fakeChatStream{chunks: textChunks(nil, "甲的回复"), gate: gate}, nil
		}
		return &fakeChatStream{chunks: textChunks(nil, "乙的回复")}, nil
	}}
	f := newFixture(t, p)

	turnA, err := f.coordinator.Send(t.Context(), "", "问题甲")
	require.NoError(t, err)
	f.coordinator.SetActiveChat(turnA.ChatID)

	// 甲还在流式接收时切到乙并完成一个回合
	turnB, err := f.coordinator.Send(t.Context(), "", "问题乙")
	require.NoError(t, err)
	f.coordinator.SetActiveChat(turnB.ChatID)
	require.NoError(t, turnB.Wait())

	view, err := f.coordinator.ActiveView(t.Context())
	require.NoError(t, err)
	require.Equal(t, turnB.ChatID, view.Chat.ID)
	require.Len(t, view.Messages, 2)
	require.Nil(t, view.Session)

	// 切回甲，放行它的流，两个聊天各自拿到正确的定稿消息
	f.coordinator.SetActiveChat(turnA.ChatID)
	close(gate)
	require.NoError(t, turnA.Wait())

	view, err = f.coordinator.ActiveView(t.Context())
	require.NoError(t, err)
	require.Equal(t, "甲的回复", view.Messages[1].Content().Text)
	require.Nil(t, view.Session)

	msgsB, err := f.messages.List(t.Context(), turnB.ChatID)
	require.NoError(t, err)
	require.Equal(t, "乙的回复", msgsB[1].Content().Text)
}

// 没有选中聊天时投影为空值
func TestActiveView_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &fakeProvider{})

	view, err := f.coordinator.ActiveView(t.Context())
	require.NoError(t, err)
	require.Empty(t, view.Chat.ID)
	require.Nil(t, view.Session)
}
