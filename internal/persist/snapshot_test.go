package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), "")

	want := Snapshot{
		Chats: []ChatSummary{
			{ID: "c1", Title: "旅行计划", Model: "gpt-5.1", ReasoningEffort: "medium", UpdatedAt: 200},
			{ID: "c2", Title: "周末菜谱", Model: "gpt-5.1-mini", ReasoningEffort: "low", VoiceMode: true, UpdatedAt: 100},
		},
		CurrentChatID: "c1",
		Settings:      Settings{Model: "gpt-5.1", ReasoningEffort: "medium"},
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, SnapshotVersion, got.Version)
	require.Equal(t, want.Chats, got.Chats)
	require.Equal(t, "c1", got.CurrentChatID)
	require.Equal(t, want.Settings, got.Settings)
}

func TestStore_LoadMissingReturnsEmpty(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), "")

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, SnapshotVersion, got.Version)
	require.Empty(t, got.Chats)
}

// 版本1的快照缺少推理强度与语音模式字段，加载时逐级补全
func TestStore_MigratesV1Snapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	legacy := `{
  "version": 1,
  "chats": [
    {"id": "c1", "title": "旧聊天", "model": "gpt-5.1", "updated_at": 100}
  ],
  "currentChatId": "c1",
  "settings": {"model": "gpt-5.1"}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chats.json"), []byte(legacy), 0o644))

	store := NewStore(dir, "")
	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, SnapshotVersion, got.Version)
	require.Len(t, got.Chats, 1)
	require.Equal(t, "medium", got.Chats[0].ReasoningEffort)
	require.False(t, got.Chats[0].VoiceMode)
	require.Equal(t, "medium", got.Settings.ReasoningEffort)
}

func TestStore_RejectsNewerSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	future := `{"version": 99, "chats": []}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chats.json"), []byte(future), 0o644))

	store := NewStore(dir, "")
	_, err := store.Load()
	require.Error(t, err)
}

// 主目录不可写时回退到备用目录，读取同样回退
func TestStore_FallbackDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	// 用一个普通文件占住主目录路径，使 MkdirAll 失败
	blocked := filepath.Join(base, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	fallback := filepath.Join(base, "fallback")

	store := NewStore(filepath.Join(blocked, "nested"), fallback)
	require.NoError(t, store.Save(Snapshot{CurrentChatID: "c9"}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "c9", got.CurrentChatID)
}
