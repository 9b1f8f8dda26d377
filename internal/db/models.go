// 由 sqlc 自动生成的代码。请勿手动编辑。
// 版本信息:
//   sqlc v1.30.0

package db

import (
	"database/sql"
)

// Chat 表示聊天记录的结构体
// 用于存储会话的元信息，包括标题、生成参数、令牌使用量、成本等
type Chat struct {
	ID               string  `json:"id"`                // 聊天唯一标识符
	Title            string  `json:"title"`             // 聊天标题
	Model            string  `json:"model"`             // 该聊天使用的模型名称
	ReasoningEffort  string  `json:"reasoning_effort"`  // 推理强度（low/medium/high/no-reasoning）
	VoiceMode        int64   `json:"voice_mode"`        // 是否启用语音模式（0：否，1：是）
	HasImages        int64   `json:"has_images"`        // 是否包含图片内容（0：否，1：是）
	PromptTokens     int64   `json:"prompt_tokens"`     // 提示词令牌（Prompt Tokens）使用量
	CompletionTokens int64   `json:"completion_tokens"` // 完成令牌（Completion Tokens）使用量
	Cost             float64 `json:"cost"`              // 聊天总成本（-1 表示存在未知定价）
	CreatedAt        int64   `json:"created_at"`        // 创建时间戳（Unix时间戳）
	UpdatedAt        int64   `json:"updated_at"`        // 更新时间戳（Unix时间戳）
}

// Message 表示消息记录的结构体
// 用于存储聊天中的消息信息，包括角色、状态、内容等
type Message struct {
	ID           string         `json:"id"`            // 消息唯一标识符
	ChatID       string         `json:"chat_id"`       // 所属聊天的ID
	Role         string         `json:"role"`          // 消息角色（user或assistant）
	Status       string         `json:"status"`        // 消息状态（pending：占位中，final：已定稿）
	Parts        string         `json:"parts"`         // 消息内容部分（JSON格式）
	Model        sql.NullString `json:"model"`         // 使用的模型名称
	GenerationID sql.NullString `json:"generation_id"` // 图片生成ID（用于多轮图片编辑）
	CreatedAt    int64          `json:"created_at"`    // 创建时间戳（Unix时间戳）
	UpdatedAt    int64          `json:"updated_at"`    // 更新时间戳（Unix时间戳）
	FinishedAt   sql.NullInt64  `json:"finished_at"`   // 消息完成时间戳（Unix时间戳）
}
