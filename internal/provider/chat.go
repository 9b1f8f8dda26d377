package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/purpose168/parley-cn/internal/message"
)

// chatRequestBody 聊天补全请求的线上报文
// 最大令牌数的字段名因模型家族而异，序列化时单独处理
type chatRequestBody struct {
	Model           string        `json:"model"`
	Messages        []ChatMessage `json:"messages"`
	Temperature     *float64      `json:"temperature,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
	Stream          bool          `json:"stream"`
}

// chatChunkPayload 聊天流中单个数据块的报文
type chatChunkPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatStream 聊天补全的流式响应
// 用法与数据库游标类似：循环 Next 取增量，结束后检查 Err
type ChatStream struct {
	decoder ssestream.Decoder
	current ChatChunk
	start   time.Time
	err     error
	done    bool
}

// StreamChat 发起流式聊天补全
// 返回的流由调用方负责 Close
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*ChatStream, error) {
	body := chatRequestBody{
		Model:           req.Model,
		Messages:        req.Messages,
		Temperature:     req.Temperature,
		ReasoningEffort: req.ReasoningEffort,
		Stream:          true,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	// 按模型家族补充最大令牌数字段
	if req.MaxTokens > 0 {
		patched := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &patched); err != nil {
			return nil, err
		}
		tokens, _ := json.Marshal(req.MaxTokens)
		patched[maxTokensField(req.Model)] = tokens
		if raw, err = json.Marshal(patched); err != nil {
			return nil, err
		}
	}

	reader, err := marshalBody(json.RawMessage(raw))
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", reader)
	if err != nil {
		return nil, err
	}
	res, err := c.postJSON(httpReq)
	if err != nil {
		return nil, err
	}
	return &ChatStream{
		decoder: ssestream.NewDecoder(res),
		start:   time.Now(),
	}, nil
}

// Next 读取下一个增量数据块
// 返回 false 表示流结束或出错，此后应检查 Err
func (s *ChatStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.decoder.Next() {
		data := s.decoder.Event().Data
		if string(data) == "[DONE]" {
			s.done = true
			return false
		}
		var payload chatChunkPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			// 坏块跳过，不拖垮整个流
			slog.Warn("跳过无法解析的数据块", "error", err, "data", string(data))
			continue
		}
		// 流中途的显式错误报文是致命的
		if payload.Error != nil {
			s.err = &StreamError{Message: payload.Error.Message}
			return false
		}
		chunk := ChatChunk{}
		if len(payload.Choices) > 0 {
			chunk.Delta = payload.Choices[0].Delta.Content
		}
		if payload.Usage != nil {
			chunk.Usage = &message.Usage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
				LatencyMS:        latencySince(s.start),
			}
		}
		// 既无增量也无用量的心跳块直接跳过
		if chunk.Delta == "" && chunk.Usage == nil {
			continue
		}
		s.current = chunk
		return true
	}
	s.err = s.decoder.Err()
	s.done = true
	return false
}

// Current 当前数据块
func (s *ChatStream) Current() ChatChunk {
	return s.current
}

// Err 流结束后的错误，正常结束时为 nil
func (s *ChatStream) Err() error {
	return s.err
}

// Close 关闭底层连接
func (s *ChatStream) Close() error {
	return s.decoder.Close()
}

// StreamError 流中途由服务端显式推送的错误
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "代理服务中断了流: " + e.Message
}
