// Package persist 负责聊天索引快照的延迟写盘与版本化迁移
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SnapshotVersion 当前快照格式版本
const SnapshotVersion = 3

// snapshotFile 快照文件名
const snapshotFile = "chats.json"

// ChatSummary 快照中单个聊天的摘要
type ChatSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Model           string `json:"model"`
	ReasoningEffort string `json:"reasoning_effort"`
	VoiceMode       bool   `json:"voice_mode"`
	HasImages       bool   `json:"has_images"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Settings 快照中记录的用户偏好
type Settings struct {
	Model           string `json:"model"`
	ReasoningEffort string `json:"reasoning_effort"`
	VoiceMode       bool   `json:"voice_mode"`
}

// Snapshot 聊天索引快照
type Snapshot struct {
	Version       int           `json:"version"`
	Chats         []ChatSummary `json:"chats"`
	CurrentChatID string        `json:"currentChatId"`
	Settings      Settings      `json:"settings"`
}

// Store 快照的磁盘存取
// 主目录写入失败时回退到备用目录，读取时优先主目录
type Store struct {
	dir      string
	fallback string
}

// NewStore 创建快照存储
func NewStore(dir, fallback string) *Store {
	return &Store{dir: dir, fallback: fallback}
}

// Save 原子化写出快照
// 先写临时文件再改名，主目录失败时尝试备用目录
func (s *Store) Save(snapshot Snapshot) error {
	snapshot.Version = SnapshotVersion
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}
	if err := writeAtomic(s.dir, data); err == nil {
		return nil
	} else if s.fallback == "" {
		return err
	} else {
		slog.Warn("主目录写入快照失败，回退到备用目录", "dir", s.dir, "fallback", s.fallback, "error", err)
	}
	if err := writeAtomic(s.fallback, data); err != nil {
		return fmt.Errorf("备用目录写入快照失败: %w", err)
	}
	return nil
}

// Load 读取并迁移快照
// 两个目录都没有快照时返回空快照
func (s *Store) Load() (Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if err != nil && s.fallback != "" {
		if fbData, fbErr := os.ReadFile(filepath.Join(s.fallback, snapshotFile)); fbErr == nil {
			data, err = fbData, nil
		}
	}
	if os.IsNotExist(err) {
		return Snapshot{Version: SnapshotVersion}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("读取快照失败: %w", err)
	}

	migrated, err := migrate(data)
	if err != nil {
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(migrated, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("解析快照失败: %w", err)
	}
	return snapshot, nil
}

// migrate 把历史版本的快照单调迁移到当前版本
func migrate(data []byte) ([]byte, error) {
	version := gjson.GetBytes(data, "version").Int()
	if version == 0 {
		version = 1
	}
	if version > SnapshotVersion {
		return nil, fmt.Errorf("快照版本 %d 高于当前支持的版本 %d", version, SnapshotVersion)
	}

	var err error
	for ; version < SnapshotVersion; version++ {
		switch version {
		case 1:
			data, err = migrateV1ToV2(data)
		case 2:
			data, err = migrateV2ToV3(data)
		}
		if err != nil {
			return nil, fmt.Errorf("快照从版本 %d 迁移失败: %w", version, err)
		}
		slog.Info("快照已迁移", "from", version, "to", version+1)
	}
	data, err = sjson.SetBytes(data, "version", SnapshotVersion)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// migrateV1ToV2 版本1没有推理强度字段，补上默认值
func migrateV1ToV2(data []byte) ([]byte, error) {
	var err error
	for i := range gjson.GetBytes(data, "chats").Array() {
		key := fmt.Sprintf("chats.%d.reasoning_effort", i)
		if gjson.GetBytes(data, key).Exists() {
			continue
		}
		data, err = sjson.SetBytes(data, key, "medium")
		if err != nil {
			return nil, err
		}
	}
	if !gjson.GetBytes(data, "settings.reasoning_effort").Exists() {
		data, err = sjson.SetBytes(data, "settings.reasoning_effort", "medium")
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// migrateV2ToV3 版本2没有语音模式字段，补上默认值
func migrateV2ToV3(data []byte) ([]byte, error) {
	var err error
	for i := range gjson.GetBytes(data, "chats").Array() {
		key := fmt.Sprintf("chats.%d.voice_mode", i)
		if gjson.GetBytes(data, key).Exists() {
			continue
		}
		data, err = sjson.SetBytes(data, key, false)
		if err != nil {
			return nil, err
		}
	}
	if !gjson.GetBytes(data, "settings.voice_mode").Exists() {
		data, err = sjson.SetBytes(data, "settings.voice_mode", false)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// writeAtomic 在目录内先写临时文件再改名
func writeAtomic(dir string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "chats-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, snapshotFile)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
