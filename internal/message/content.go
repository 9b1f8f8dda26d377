// Package message 提供消息内容处理相关的类型定义和方法
// 本包定义了消息角色、消息状态、内容部分等核心数据结构
package message

import (
	"slices"
)

// MessageRole 定义消息角色的类型
type MessageRole string

const (
	// Assistant 表示助手角色
	Assistant MessageRole = "assistant"
	// User 表示用户角色
	User MessageRole = "user"
	// System 表示系统角色（仅在构建出站请求时合成，永不持久化）
	System MessageRole = "system"
)

// MessageStatus 定义消息状态的类型
// 占位消息以 pending 状态插入，流式传输结束后定稿为 final
type MessageStatus string

const (
	// StatusPending 表示等待流式传输完成的占位消息
	StatusPending MessageStatus = "pending"
	// StatusFinal 表示已定稿的消息
	StatusFinal MessageStatus = "final"
)

// FinishReason 定义消息结束原因的类型
type FinishReason string

const (
	// FinishReasonEndTurn 表示回合正常结束
	FinishReasonEndTurn FinishReason = "end_turn"
	// FinishReasonCanceled 表示用户取消，已累积的部分输出被保留
	FinishReasonCanceled FinishReason = "canceled"
	// FinishReasonError 表示发生错误
	FinishReasonError FinishReason = "error"
	// FinishReasonEmpty 表示流正常结束但未产生任何内容
	FinishReasonEmpty FinishReason = "empty"

	// FinishReasonUnknown 表示未知结束原因（不应发生）
	FinishReasonUnknown FinishReason = "unknown"
)

// UnknownCost 成本哨兵值，表示存在定价未知的消息
// 任何包含该值的求和结果也必须为该值（哨兵优先于有限部分和）
const UnknownCost = -1

// ContentPart 定义内容部分的接口
// 所有内容类型都必须实现此接口以作为消息的一部分
type ContentPart interface {
	isPart()
}

// TextContent 表示文本内容
type TextContent struct {
	// Text 包含文本内容
	Text string `json:"text"`
}

// String 返回文本内容
func (tc TextContent) String() string {
	return tc.Text
}

// isPart 实现 ContentPart 接口
func (TextContent) isPart() {}

// ImageContent 表示图片内容
// 图片字节永不内嵌在消息记录中，而是通过缓存键间接引用
type ImageContent struct {
	// CacheRef 包含图片的缓存引用（格式为 cache:<id> 的伪URL）
	CacheRef string `json:"cache_ref"`
	// MIMEType 包含图片的 MIME 类型
	MIMEType string `json:"mime_type,omitempty"`
	// GenerationID 包含上游的图片生成ID（用于多轮图片编辑）
	GenerationID string `json:"generation_id,omitempty"`
	// Progress 包含图片生成进度百分比（0-100），上游协议保证非递减
	Progress int64 `json:"progress,omitempty"`
}

// String 返回图片的缓存引用
func (ic ImageContent) String() string {
	return ic.CacheRef
}

// isPart 实现 ContentPart 接口
func (ImageContent) isPart() {}

// Usage 表示一次回合的响应元数据
// 在启用诊断捕获时附加到定稿的助手消息上
type Usage struct {
	// PromptTokens 包含提示词令牌使用量
	PromptTokens int64 `json:"prompt_tokens"`
	// CompletionTokens 包含完成令牌使用量
	CompletionTokens int64 `json:"completion_tokens"`
	// LatencyMS 包含回合的挂钟耗时（毫秒）
	LatencyMS int64 `json:"latency_ms"`
	// Cost 包含估算成本（定价未知时为 UnknownCost）
	Cost float64 `json:"cost"`
}

// isPart 实现 ContentPart 接口
func (Usage) isPart() {}

// Finish 表示消息结束信息
type Finish struct {
	// Reason 包含结束原因
	Reason FinishReason `json:"reason"`
	// Time 包含结束时间戳
	Time int64 `json:"time"`
	// Message 包含结束消息
	Message string `json:"message,omitempty"`
	// Details 包含结束详情
	Details string `json:"details,omitempty"`
}

// isPart 实现 ContentPart 接口
func (Finish) isPart() {}

// Message 表示一条完整的消息
type Message struct {
	// ID 包含消息的唯一标识符
	ID string
	// ChatID 包含所属聊天的标识符
	ChatID string
	// Role 包含消息角色
	Role MessageRole
	// Status 包含消息状态（占位中/已定稿）
	Status MessageStatus
	// Parts 包含消息的所有内容部分
	Parts []ContentPart
	// Model 包含生成该消息的模型名称
	Model string
	// GenerationID 包含图片生成ID（用于多轮图片编辑的回引）
	GenerationID string
	// CreatedAt 包含消息创建时间戳
	CreatedAt int64
	// UpdatedAt 包含消息更新时间戳
	UpdatedAt int64
}

// Content 返回消息中的文本内容
// 如果存在多个文本内容部分，返回第一个找到的
func (m *Message) Content() TextContent {
	for _, part := range m.Parts {
		if c, ok := part.(TextContent); ok {
			return c
		}
	}
	return TextContent{}
}

// ImageContents 返回消息中的所有图片内容
func (m *Message) ImageContents() []ImageContent {
	imageContents := make([]ImageContent, 0)
	for _, part := range m.Parts {
		if c, ok := part.(ImageContent); ok {
			imageContents = append(imageContents, c)
		}
	}
	return imageContents
}

// HasImages 检查消息是否包含图片内容
func (m *Message) HasImages() bool {
	return len(m.ImageContents()) > 0
}

// IsUser 检查消息是否为用户消息
func (m *Message) IsUser() bool {
	return m.Role == User
}

// IsFinished 检查消息是否已结束
func (m *Message) IsFinished() bool {
	for _, part := range m.Parts {
		if _, ok := part.(Finish); ok {
			return true
		}
	}
	return false
}

// FinishPart 返回消息的结束部分
// 如果不存在结束部分，返回 nil
func (m *Message) FinishPart() *Finish {
	for _, part := range m.Parts {
		if c, ok := part.(Finish); ok {
			return &c
		}
	}
	return nil
}

// FinishReason 返回消息的结束原因
// 如果消息未结束，返回空字符串
func (m *Message) FinishReason() FinishReason {
	if f := m.FinishPart(); f != nil {
		return f.Reason
	}
	return ""
}

// UsagePart 返回消息的响应元数据部分
// 如果不存在，返回 nil
func (m *Message) UsagePart() *Usage {
	for _, part := range m.Parts {
		if c, ok := part.(Usage); ok {
			return &c
		}
	}
	return nil
}

// AppendContent 向消息追加文本内容增量
// 如果已存在文本内容部分，则追加到该部分；否则创建新的文本内容部分
func (m *Message) AppendContent(delta string) {
	found := false
	for i, part := range m.Parts {
		if c, ok := part.(TextContent); ok {
			m.Parts[i] = TextContent{Text: c.Text + delta}
			found = true
		}
	}
	if !found {
		m.Parts = append(m.Parts, TextContent{Text: delta})
	}
}

// SetContent 替换消息的文本内容
// 如果已存在文本内容部分，则原地替换；否则创建新的文本内容部分
func (m *Message) SetContent(text string) {
	for i, part := range m.Parts {
		if _, ok := part.(TextContent); ok {
			m.Parts[i] = TextContent{Text: text}
			return
		}
	}
	m.Parts = append(m.Parts, TextContent{Text: text})
}

// SetImage 替换消息的图片内容
// 增量质量的图片载荷总是整体替换，保留最近一次累积结果作为候选最终图片
func (m *Message) SetImage(img ImageContent) {
	for i, part := range m.Parts {
		if _, ok := part.(ImageContent); ok {
			m.Parts[i] = img
			return
		}
	}
	m.Parts = append(m.Parts, img)
}

// SetFinish 设置消息的结束部分
// 如果已存在结束部分，则原地替换；否则追加
func (m *Message) SetFinish(f Finish) {
	for i, part := range m.Parts {
		if _, ok := part.(Finish); ok {
			m.Parts[i] = f
			return
		}
	}
	m.Parts = append(m.Parts, f)
}

// Clone 返回消息的副本
// 在发布事件前克隆消息，以避免与 Parts 切片的并发修改产生竞态条件
func (m *Message) Clone() Message {
	clone := *m
	clone.Parts = slices.Clone(m.Parts)
	return clone
}
