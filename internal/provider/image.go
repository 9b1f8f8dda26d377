package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v2/packages/ssestream"
)

// imageRequestBody 图片生成请求的线上报文
type imageRequestBody struct {
	Prompt       string        `json:"prompt"`
	Model        string        `json:"model"`
	Quality      string        `json:"quality,omitempty"`
	AspectRatio  string        `json:"aspect_ratio,omitempty"`
	Stream       bool          `json:"stream"`
	Context      []ChatMessage `json:"context,omitempty"`
	GenerationID string        `json:"generation_id,omitempty"`
}

// imageEventPayload 图片流中单个事件的报文
type imageEventPayload struct {
	Type         string `json:"type"`
	B64          string `json:"b64_json"`
	Progress     int64  `json:"progress"`
	MIMEType     string `json:"mime_type"`
	GenerationID string `json:"generation_id"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ImageStream 图片生成的流式响应
type ImageStream struct {
	decoder ssestream.Decoder
	current ImageEvent
	err     error
	done    bool
}

// StreamImage 发起流式图片生成
// 返回的流由调用方负责 Close
func (c *Client) StreamImage(ctx context.Context, req ImageRequest) (*ImageStream, error) {
	body := imageRequestBody{
		Prompt:       req.Prompt,
		Model:        req.Model,
		Quality:      req.Quality,
		AspectRatio:  req.AspectRatio,
		Stream:       req.Streaming,
		Context:      req.Context,
		GenerationID: req.GenerationID,
	}
	reader, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", reader)
	if err != nil {
		return nil, err
	}
	res, err := c.postJSON(httpReq)
	if err != nil {
		return nil, err
	}
	return &ImageStream{decoder: ssestream.NewDecoder(res)}, nil
}

// Next 读取下一个图片事件
func (s *ImageStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.decoder.Next() {
		data := s.decoder.Event().Data
		if string(data) == "[DONE]" {
			s.done = true
			return false
		}
		var payload imageEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			slog.Warn("跳过无法解析的图片事件", "error", err)
			continue
		}
		switch ImageEventType(payload.Type) {
		case ImageEventPartial:
			s.current = ImageEvent{
				Type:         ImageEventPartial,
				B64:          payload.B64,
				Progress:     payload.Progress,
				GenerationID: payload.GenerationID,
			}
		case ImageEventComplete:
			s.current = ImageEvent{
				Type:         ImageEventComplete,
				B64:          payload.B64,
				Progress:     100,
				MIMEType:     payload.MIMEType,
				GenerationID: payload.GenerationID,
			}
			// complete 事件之后不再有内容
			s.done = true
		case ImageEventError:
			msg := "图片生成失败"
			if payload.Error != nil {
				msg = payload.Error.Message
			}
			s.err = &StreamError{Message: msg}
			return false
		default:
			slog.Warn("跳过未知类型的图片事件", "type", payload.Type)
			continue
		}
		return true
	}
	s.err = s.decoder.Err()
	s.done = true
	return false
}

// Current 当前图片事件
func (s *ImageStream) Current() ImageEvent {
	return s.current
}

// Err 流结束后的错误，正常结束时为 nil
func (s *ImageStream) Err() error {
	return s.err
}

// Close 关闭底层连接
func (s *ImageStream) Close() error {
	return s.decoder.Close()
}
