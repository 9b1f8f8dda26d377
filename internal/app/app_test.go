package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/purpose168/parley-cn/internal/config"
	"github.com/purpose168/parley-cn/internal/db"
	"github.com/stretchr/testify/require"
)

// newTestApp 用临时数据库和脚本化的 SSE 服务搭建完整应用
func newTestApp(t *testing.T, handler http.Handler) *App {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dataDir := t.TempDir()
	cfg := &config.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		DataDir: dataDir,
		Defaults: config.Defaults{
			Model:           "gpt-5.1",
			ReasoningEffort: "medium",
		},
		Debounce: config.Debounce{
			Placeholder: 5 * time.Millisecond,
			Snapshot:    5 * time.Millisecond,
		},
		SystemPrompt: "测试系统提示",
		Pricing:      map[string]config.ModelPricing{"gpt-5.1": {InputPerM: 1.25, OutputPerM: 10}},
	}

	conn, err := db.Connect(t.Context(), dataDir)
	require.NoError(t, err)

	app, err := New(t.Context(), conn, cfg)
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	return app
}

// chatHandler 返回一个推送固定回复的聊天补全服务
func chatHandler(deltas ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":4}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})
}

// 端到端：非交互回合把流式回复写到输出并完整落库
func TestRunPrompt_EndToEnd(t *testing.T) {
	app := newTestApp(t, chatHandler("你好", "，世界"))

	var out strings.Builder
	require.NoError(t, app.RunPrompt(t.Context(), &out, "", "打个招呼"))
	require.Equal(t, "你好，世界\n", out.String())

	chats, err := app.Chats.List(t.Context())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, int64(10), chats[0].PromptTokens)

	msgs, err := app.Messages.List(t.Context(), chats[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "你好，世界", msgs[1].Content().Text)
}

// 聊天变更触发延迟快照，关闭时冲刷到磁盘
func TestSnapshotWrittenAfterTurn(t *testing.T) {
	app := newTestApp(t, chatHandler("回复"))

	var out strings.Builder
	require.NoError(t, app.RunPrompt(t.Context(), &out, "", "写快照"))

	require.Eventually(t, func() bool {
		snapshot, err := app.snapshotStore.Load()
		return err == nil && len(snapshot.Chats) == 1
	}, time.Second, 10*time.Millisecond)

	snapshot, err := app.snapshotStore.Load()
	require.NoError(t, err)
	require.Equal(t, "写快照", snapshot.Chats[0].Title)
	require.Equal(t, "gpt-5.1", snapshot.Settings.Model)
}

// 重启后恢复上次查看的聊天
func TestRestoreSnapshot(t *testing.T) {
	app := newTestApp(t, chatHandler("回复"))

	var out strings.Builder
	require.NoError(t, app.RunPrompt(t.Context(), &out, "", "第一条"))
	chats, err := app.Chats.List(t.Context())
	require.NoError(t, err)

	app.Coordinator.SetActiveChat(chats[0].ID)
	require.NoError(t, app.writeSnapshot())

	// 模拟重启：新实例从同一目录恢复
	app.Coordinator.SetActiveChat("")
	snapshot, err := app.RestoreSnapshot()
	require.NoError(t, err)
	require.Equal(t, chats[0].ID, snapshot.CurrentChatID)
	require.Equal(t, chats[0].ID, app.Coordinator.ActiveChat())
}
