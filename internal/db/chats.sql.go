// 由 sqlc 自动生成的代码。请勿编辑。
// 版本信息:
//   sqlc v1.30.0
// 源文件: chats.sql

package db

import (
	"context"
)

const createChat = `-- 名称: CreateChat :one
INSERT INTO chats (
    id,
    title,
    model,
    reasoning_effort,
    voice_mode,
    has_images,
    prompt_tokens,
    completion_tokens,
    cost,
    created_at,
    updated_at
) VALUES (
    ?,
    ?,
    ?,
    ?,
    ?,
    0,
    0,
    0,
    0.0,
    strftime('%s', 'now'),
    strftime('%s', 'now')
) RETURNING id, title, model, reasoning_effort, voice_mode, has_images, prompt_tokens, completion_tokens, cost, created_at, updated_at
`

// CreateChatParams 创建聊天参数结构体
type CreateChatParams struct {
	ID              string `json:"id"`               // 聊天ID
	Title           string `json:"title"`            // 聊天标题
	Model           string `json:"model"`            // 模型名称
	ReasoningEffort string `json:"reasoning_effort"` // 推理强度
	VoiceMode       int64  `json:"voice_mode"`       // 是否启用语音模式
}

// CreateChat 创建新聊天
// 参数:
//   - ctx: 上下文
//   - arg: 创建聊天参数
//
// 返回:
//   - Chat: 创建的聊天对象
//   - error: 错误信息
func (q *Queries) CreateChat(ctx context.Context, arg CreateChatParams) (Chat, error) {
	row := q.queryRow(ctx, q.createChatStmt, createChat,
		arg.ID,
		arg.Title,
		arg.Model,
		arg.ReasoningEffort,
		arg.VoiceMode,
	)
	var i Chat
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Model,
		&i.ReasoningEffort,
		&i.VoiceMode,
		&i.HasImages,
		&i.PromptTokens,
		&i.CompletionTokens,
		&i.Cost,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteChat = `-- 名称: DeleteChat :exec
DELETE FROM chats
WHERE id = ?
`

// DeleteChat 删除聊天
// 参数:
//   - ctx: 上下文
//   - id: 聊天ID
//
// 返回:
//   - error: 错误信息
func (q *Queries) DeleteChat(ctx context.Context, id string) error {
	_, err := q.exec(ctx, q.deleteChatStmt, deleteChat, id)
	return err
}

const getChatByID = `-- 名称: GetChatByID :one
SELECT id, title, model, reasoning_effort, voice_mode, has_images, prompt_tokens, completion_tokens, cost, created_at, updated_at
FROM chats
WHERE id = ? LIMIT 1
`

// GetChatByID 根据ID获取聊天
// 参数:
//   - ctx: 上下文
//   - id: 聊天ID
//
// 返回:
//   - Chat: 聊天对象
//   - error: 错误信息
func (q *Queries) GetChatByID(ctx context.Context, id string) (Chat, error) {
	row := q.queryRow(ctx, q.getChatByIDStmt, getChatByID, id)
	var i Chat
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Model,
		&i.ReasoningEffort,
		&i.VoiceMode,
		&i.HasImages,
		&i.PromptTokens,
		&i.CompletionTokens,
		&i.Cost,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listChats = `-- 名称: ListChats :many
SELECT id, title, model, reasoning_effort, voice_mode, has_images, prompt_tokens, completion_tokens, cost, created_at, updated_at
FROM chats
ORDER BY updated_at DESC
`

// ListChats 获取所有聊天列表（按更新时间降序，用于历史侧边栏）
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - []Chat: 聊天列表
//   - error: 错误信息
func (q *Queries) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := q.query(ctx, q.listChatsStmt, listChats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Chat{}
	for rows.Next() {
		var i Chat
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Model,
			&i.ReasoningEffort,
			&i.VoiceMode,
			&i.HasImages,
			&i.PromptTokens,
			&i.CompletionTokens,
			&i.Cost,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const touchChat = `-- 名称: TouchChat :exec
UPDATE chats
SET updated_at = strftime('%s', 'now')
WHERE id = ?
`

// TouchChat 刷新聊天的更新时间（消息变动时调用，驱动历史列表排序）
// 参数:
//   - ctx: 上下文
//   - id: 聊天ID
//
// 返回:
//   - error: 错误信息
func (q *Queries) TouchChat(ctx context.Context, id string) error {
	_, err := q.exec(ctx, q.touchChatStmt, touchChat, id)
	return err
}

const updateChat = `-- 名称: UpdateChat :one
UPDATE chats
SET
    title = ?,
    model = ?,
    reasoning_effort = ?,
    voice_mode = ?,
    has_images = ?,
    prompt_tokens = ?,
    completion_tokens = ?,
    cost = ?,
    updated_at = strftime('%s', 'now')
WHERE id = ?
RETURNING id, title, model, reasoning_effort, voice_mode, has_images, prompt_tokens, completion_tokens, cost, created_at, updated_at
`

// UpdateChatParams 更新聊天参数结构体
type UpdateChatParams struct {
	Title            string  `json:"title"`             // 聊天标题
	Model            string  `json:"model"`             // 模型名称
	ReasoningEffort  string  `json:"reasoning_effort"`  // 推理强度
	VoiceMode        int64   `json:"voice_mode"`        // 是否启用语音模式
	HasImages        int64   `json:"has_images"`        // 是否包含图片内容
	PromptTokens     int64   `json:"prompt_tokens"`     // 提示词令牌数
	CompletionTokens int64   `json:"completion_tokens"` // 完成令牌数
	Cost             float64 `json:"cost"`              // 成本
	ID               string  `json:"id"`                // 聊天ID
}

// UpdateChat 更新聊天信息
// 参数:
//   - ctx: 上下文
//   - arg: 更新聊天参数
//
// 返回:
//   - Chat: 更新后的聊天对象
//   - error: 错误信息（聊天不存在时为 sql.ErrNoRows）
func (q *Queries) UpdateChat(ctx context.Context, arg UpdateChatParams) (Chat, error) {
	row := q.queryRow(ctx, q.updateChatStmt, updateChat,
		arg.Title,
		arg.Model,
		arg.ReasoningEffort,
		arg.VoiceMode,
		arg.HasImages,
		arg.PromptTokens,
		arg.CompletionTokens,
		arg.Cost,
		arg.ID,
	)
	var i Chat
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Model,
		&i.ReasoningEffort,
		&i.VoiceMode,
		&i.HasImages,
		&i.PromptTokens,
		&i.CompletionTokens,
		&i.Cost,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
