package chat

import (
	"database/sql"
	"testing"

	"github.com/purpose168/parley-cn/internal/db"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/stretchr/testify/require"
)

// testService 创建基于临时数据库的聊天服务
func testService(t *testing.T) (Service, *sql.DB) {
	t.Helper()
	conn, err := db.Connect(t.Context(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewService(db.New(conn)), conn
}

func TestService_CreateAndGet(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	created, err := svc.Create(t.Context(), CreateChatParams{
		Title:           "旅行计划",
		Model:           "gpt-5.1",
		ReasoningEffort: "medium",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "旅行计划", created.Title)
	require.Zero(t, created.Cost)

	got, err := svc.Get(t.Context(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
}

func TestService_ListOrderedByUpdatedAt(t *testing.T) {
	t.Parallel()
	svc, conn := testService(t)

	first, err := svc.Create(t.Context(), CreateChatParams{Title: "较旧", Model: "gpt-5.1"})
	require.NoError(t, err)
	second, err := svc.Create(t.Context(), CreateChatParams{Title: "较新", Model: "gpt-5.1"})
	require.NoError(t, err)

	// 时间戳精度为秒，直接修改更新时间以获得确定性排序
	_, err = conn.ExecContext(t.Context(), "UPDATE chats SET updated_at = 100 WHERE id = ?", first.ID)
	require.NoError(t, err)
	_, err = conn.ExecContext(t.Context(), "UPDATE chats SET updated_at = 200 WHERE id = ?", second.ID)
	require.NoError(t, err)

	chats, err := svc.List(t.Context())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, second.ID, chats[0].ID)
	require.Equal(t, first.ID, chats[1].ID)
}

func TestService_MessageMutationRefreshesOrdering(t *testing.T) {
	t.Parallel()
	svc, conn := testService(t)
	messages := message.NewService(db.New(conn))

	older, err := svc.Create(t.Context(), CreateChatParams{Title: "较旧", Model: "gpt-5.1"})
	require.NoError(t, err)
	newer, err := svc.Create(t.Context(), CreateChatParams{Title: "较新", Model: "gpt-5.1"})
	require.NoError(t, err)

	// 时间戳精度为秒，把两个聊天都推到过去，新消息的刷新才能产生可观察的排序变化
	_, err = conn.ExecContext(t.Context(), "UPDATE chats SET updated_at = 100 WHERE id = ?", older.ID)
	require.NoError(t, err)
	_, err = conn.ExecContext(t.Context(), "UPDATE chats SET updated_at = 200 WHERE id = ?", newer.ID)
	require.NoError(t, err)

	_, err = messages.Create(t.Context(), older.ID, message.CreateMessageParams{
		Role:  message.User,
		Parts: []message.ContentPart{message.TextContent{Text: "新的动静"}},
	})
	require.NoError(t, err)

	chats, err := svc.List(t.Context())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, older.ID, chats[0].ID)
	require.Equal(t, newer.ID, chats[1].ID)
}

// 保存已删除的聊天应静默跳过而不报错
func TestService_SaveMissingChatIsNoop(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	chat := Chat{ID: "不存在", Title: "幽灵聊天"}
	_, err := svc.Save(t.Context(), chat)
	require.NoError(t, err)

	chats, err := svc.List(t.Context())
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestService_Rename(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	created, err := svc.Create(t.Context(), CreateChatParams{Title: "新聊天", Model: "gpt-5.1"})
	require.NoError(t, err)

	require.NoError(t, svc.Rename(t.Context(), created.ID, "周末菜谱"))

	got, err := svc.Get(t.Context(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "周末菜谱", got.Title)
}

func TestService_DeleteRemovesMessages(t *testing.T) {
	t.Parallel()
	svc, conn := testService(t)
	messages := message.NewService(db.New(conn))

	created, err := svc.Create(t.Context(), CreateChatParams{Title: "待删除", Model: "gpt-5.1"})
	require.NoError(t, err)
	_, err = messages.Create(t.Context(), created.ID, message.CreateMessageParams{
		Role:  message.User,
		Parts: []message.ContentPart{message.TextContent{Text: "你好"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(t.Context(), created.ID))

	_, err = svc.Get(t.Context(), created.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	remaining, err := messages.List(t.Context(), created.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestService_AddUsage(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	created, err := svc.Create(t.Context(), CreateChatParams{Title: "统计", Model: "gpt-5.1"})
	require.NoError(t, err)

	updated, err := svc.AddUsage(t.Context(), created.ID, message.Usage{
		PromptTokens:     100,
		CompletionTokens: 50,
		Cost:             0.002,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), updated.PromptTokens)
	require.Equal(t, int64(50), updated.CompletionTokens)
	require.InDelta(t, 0.002, updated.Cost, 1e-9)

	updated, err = svc.AddUsage(t.Context(), created.ID, message.Usage{
		PromptTokens:     10,
		CompletionTokens: 5,
		Cost:             0.001,
	})
	require.NoError(t, err)
	require.Equal(t, int64(110), updated.PromptTokens)
	require.InDelta(t, 0.003, updated.Cost, 1e-9)
}

// 未知成本具有占优性：一旦出现未知定价，累计成本保持未知
func TestService_AddUsageUnknownCostDominates(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	created, err := svc.Create(t.Context(), CreateChatParams{Title: "未知定价", Model: "experimental"})
	require.NoError(t, err)

	updated, err := svc.AddUsage(t.Context(), created.ID, message.Usage{Cost: 0.01})
	require.NoError(t, err)
	require.InDelta(t, 0.01, updated.Cost, 1e-9)

	updated, err = svc.AddUsage(t.Context(), created.ID, message.Usage{Cost: message.UnknownCost})
	require.NoError(t, err)
	require.Equal(t, float64(message.UnknownCost), updated.Cost)

	// 后续的已知成本无法洗白未知状态
	updated, err = svc.AddUsage(t.Context(), created.ID, message.Usage{Cost: 0.5})
	require.NoError(t, err)
	require.Equal(t, float64(message.UnknownCost), updated.Cost)
}

func TestService_TotalCost(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	a, err := svc.Create(t.Context(), CreateChatParams{Title: "甲", Model: "gpt-5.1"})
	require.NoError(t, err)
	b, err := svc.Create(t.Context(), CreateChatParams{Title: "乙", Model: "gpt-5.1"})
	require.NoError(t, err)

	_, err = svc.AddUsage(t.Context(), a.ID, message.Usage{Cost: 0.01})
	require.NoError(t, err)
	_, err = svc.AddUsage(t.Context(), b.ID, message.Usage{Cost: 0.02})
	require.NoError(t, err)

	total, err := svc.TotalCost(t.Context())
	require.NoError(t, err)
	require.InDelta(t, 0.03, total, 1e-9)

	// 任一聊天成本未知时，总成本同样未知
	_, err = svc.AddUsage(t.Context(), b.ID, message.Usage{Cost: message.UnknownCost})
	require.NoError(t, err)
	total, err = svc.TotalCost(t.Context())
	require.NoError(t, err)
	require.Equal(t, float64(message.UnknownCost), total)
}

func TestService_MarkHasImages(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	created, err := svc.Create(t.Context(), CreateChatParams{Title: "图片聊天", Model: "gpt-5.1"})
	require.NoError(t, err)
	require.False(t, created.HasImages)

	require.NoError(t, svc.MarkHasImages(t.Context(), created.ID))
	got, err := svc.Get(t.Context(), created.ID)
	require.NoError(t, err)
	require.True(t, got.HasImages)
}
