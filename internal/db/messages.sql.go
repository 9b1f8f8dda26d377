// 由 sqlc 自动生成的代码。请勿编辑。
// 版本信息:
//   sqlc v1.30.0
// 源文件: messages.sql

package db

import (
	"context"
	"database/sql"
)

const createMessage = `-- 名称: CreateMessage :one
INSERT INTO messages (
    id,
    chat_id,
    role,
    status,
    parts,
    model,
    generation_id,
    created_at,
    updated_at
) VALUES (
    ?,
    ?,
    ?,
    ?,
    ?,
    ?,
    ?,
    strftime('%s', 'now'),
    strftime('%s', 'now')
) RETURNING id, chat_id, role, status, parts, model, generation_id, created_at, updated_at, finished_at
`

// CreateMessageParams 创建消息参数结构体
type CreateMessageParams struct {
	ID           string         `json:"id"`            // 消息ID
	ChatID       string         `json:"chat_id"`       // 所属聊天ID
	Role         string         `json:"role"`          // 消息角色
	Status       string         `json:"status"`        // 消息状态
	Parts        string         `json:"parts"`         // 消息内容部分（JSON格式）
	Model        sql.NullString `json:"model"`         // 模型名称
	GenerationID sql.NullString `json:"generation_id"` // 图片生成ID
}

// CreateMessage 创建新消息
// 参数:
//   - ctx: 上下文
//   - arg: 创建消息参数
//
// 返回:
//   - Message: 创建的消息对象
//   - error: 错误信息
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.queryRow(ctx, q.createMessageStmt, createMessage,
		arg.ID,
		arg.ChatID,
		arg.Role,
		arg.Status,
		arg.Parts,
		arg.Model,
		arg.GenerationID,
	)
	var i Message
	err := row.Scan(
		&i.ID,
		&i.ChatID,
		&i.Role,
		&i.Status,
		&i.Parts,
		&i.Model,
		&i.GenerationID,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.FinishedAt,
	)
	return i, err
}

const deleteChatMessages = `-- 名称: DeleteChatMessages :exec
DELETE FROM messages
WHERE chat_id = ?
`

// DeleteChatMessages 删除指定聊天的所有消息
// 参数:
//   - ctx: 上下文
//   - chatID: 聊天ID
//
// 返回:
//   - error: 错误信息
func (q *Queries) DeleteChatMessages(ctx context.Context, chatID string) error {
	_, err := q.exec(ctx, q.deleteChatMessagesStmt, deleteChatMessages, chatID)
	return err
}

const deleteMessage = `-- 名称: DeleteMessage :exec
DELETE FROM messages
WHERE id = ?
`

// DeleteMessage 删除指定消息
// 参数:
//   - ctx: 上下文
//   - id: 消息ID
//
// 返回:
//   - error: 错误信息
func (q *Queries) DeleteMessage(ctx context.Context, id string) error {
	_, err := q.exec(ctx, q.deleteMessageStmt, deleteMessage, id)
	return err
}

const getMessage = `-- 名称: GetMessage :one
SELECT id, chat_id, role, status, parts, model, generation_id, created_at, updated_at, finished_at
FROM messages
WHERE id = ? LIMIT 1
`

// GetMessage 根据ID获取消息
// 参数:
//   - ctx: 上下文
//   - id: 消息ID
//
// 返回:
//   - Message: 消息对象
//   - error: 错误信息
func (q *Queries) GetMessage(ctx context.Context, id string) (Message, error) {
	row := q.queryRow(ctx, q.getMessageStmt, getMessage, id)
	var i Message
	err := row.Scan(
		&i.ID,
		&i.ChatID,
		&i.Role,
		&i.Status,
		&i.Parts,
		&i.Model,
		&i.GenerationID,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.FinishedAt,
	)
	return i, err
}

const listMessagesByChat = `-- 名称: ListMessagesByChat :many
SELECT id, chat_id, role, status, parts, model, generation_id, created_at, updated_at, finished_at
FROM messages
WHERE chat_id = ?
ORDER BY created_at ASC, rowid ASC
`

// ListMessagesByChat 列出指定聊天的所有消息（插入顺序即对话顺序）
// 参数:
//   - ctx: 上下文
//   - chatID: 聊天ID
//
// 返回:
//   - []Message: 消息列表
//   - error: 错误信息
func (q *Queries) ListMessagesByChat(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := q.query(ctx, q.listMessagesByChatStmt, listMessagesByChat, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Message{}
	for rows.Next() {
		var i Message
		if err := rows.Scan(
			&i.ID,
			&i.ChatID,
			&i.Role,
			&i.Status,
			&i.Parts,
			&i.Model,
			&i.GenerationID,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.FinishedAt,
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

const updateMessage = `-- 名称: UpdateMessage :exec
UPDATE messages
SET
    status = ?,
    parts = ?,
    generation_id = ?,
    finished_at = ?,
    updated_at = strftime('%s', 'now')
WHERE id = ?
`

// UpdateMessageParams 更新消息参数结构体
type UpdateMessageParams struct {
	Status       string         `json:"status"`        // 消息状态
	Parts        string         `json:"parts"`         // 消息内容部分（JSON格式）
	GenerationID sql.NullString `json:"generation_id"` // 图片生成ID
	FinishedAt   sql.NullInt64  `json:"finished_at"`   // 完成时间戳
	ID           string         `json:"id"`            // 消息ID
}

// UpdateMessage 更新消息内容
// 参数:
//   - ctx: 上下文
//   - arg: 更新消息参数
//
// 返回:
//   - error: 错误信息
func (q *Queries) UpdateMessage(ctx context.Context, arg UpdateMessageParams) error {
	_, err := q.exec(ctx, q.updateMessageStmt, updateMessage,
		arg.Status,
		arg.Parts,
		arg.GenerationID,
		arg.FinishedAt,
		arg.ID,
	)
	return err
}
