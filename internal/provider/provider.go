// Package provider 实现与模型代理服务的流式通信
// 聊天补全与图片生成都通过 SSE 推送增量结果
package provider

import (
	"errors"

	"github.com/purpose168/parley-cn/internal/message"
)

// ErrUnsupportedModel 代理服务不支持所请求的模型
var ErrUnsupportedModel = errors.New("模型不受支持")

// ErrReasoningUnsupported 所请求的模型不支持指定的推理强度
var ErrReasoningUnsupported = errors.New("模型不支持该推理强度")

// ChatMessage 发往代理服务的单条消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天补全请求
type ChatRequest struct {
	Messages        []ChatMessage // 含系统提示的完整上下文
	Model           string
	Temperature     *float64 // nil 表示使用服务端默认值
	ReasoningEffort string   // low/medium/high/no-reasoning
	MaxTokens       int64    // 0 表示使用服务端默认值
}

// ChatChunk 聊天流中的一个增量
type ChatChunk struct {
	// Delta 本块新增的回复文本
	Delta string
	// Usage 仅在最后一个数据块上出现
	Usage *message.Usage
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Prompt      string
	Model       string
	Quality     string // low/medium/high
	AspectRatio string // 如 "1:1"、"16:9"
	Streaming   bool   // 是否请求增量质量的中间图
	// Context 多轮图片编辑的历史消息，图片字节已剥离
	Context []ChatMessage
	// GenerationID 续接上一轮图片编辑时携带
	GenerationID string
}

// ImageEventType 图片流事件类型
type ImageEventType string

const (
	// ImageEventPartial 增量质量的中间图
	ImageEventPartial ImageEventType = "partial_image"
	// ImageEventComplete 最终图片
	ImageEventComplete ImageEventType = "complete"
	// ImageEventError 服务端生成失败
	ImageEventError ImageEventType = "error"
)

// ImageEvent 图片流中的一个事件
type ImageEvent struct {
	Type ImageEventType
	// B64 图片数据，partial 与 complete 事件携带
	B64 string
	// Progress 生成进度百分比
	Progress int64
	// MIMEType 图片格式，complete 事件携带
	MIMEType string
	// GenerationID 本轮生成的ID，用于后续编辑
	GenerationID string
}

// UnsupportedModelDetector 判定一次失败响应是否因为模型不受支持
// 代理服务演进较快，错误报文形态不稳定，因此判定逻辑可替换
type UnsupportedModelDetector func(statusCode int, body []byte) bool

// ReasoningUnsupportedDetector 判定一次失败响应是否因为推理强度不受支持
type ReasoningUnsupportedDetector func(statusCode int, body []byte) bool
