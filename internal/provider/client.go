package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client 模型代理服务的 HTTP 客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	unsupportedModel     UnsupportedModelDetector
	reasoningUnsupported ReasoningUnsupportedDetector
}

// Option 客户端可选配置
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端，测试时常用
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUnsupportedModelDetector 替换模型不受支持的判定逻辑
func WithUnsupportedModelDetector(d UnsupportedModelDetector) Option {
	return func(c *Client) { c.unsupportedModel = d }
}

// WithReasoningUnsupportedDetector 替换推理强度不受支持的判定逻辑
func WithReasoningUnsupportedDetector(d ReasoningUnsupportedDetector) Option {
	return func(c *Client) { c.reasoningUnsupported = d }
}

// New 创建代理服务客户端
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			// 流式响应可能持续很久，只约束建连与首包
			Timeout: 0,
		},
		unsupportedModel:     defaultUnsupportedModelDetector,
		reasoningUnsupported: defaultReasoningUnsupportedDetector,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorPayload 代理服务的标准错误报文
type errorPayload struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// defaultUnsupportedModelDetector 默认的模型不受支持判定
func defaultUnsupportedModelDetector(statusCode int, body []byte) bool {
	if statusCode != http.StatusBadRequest && statusCode != http.StatusNotFound {
		return false
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	if payload.Error.Code == "model_not_found" || payload.Error.Code == "unsupported_model" {
		return true
	}
	msg := strings.ToLower(payload.Error.Message)
	return strings.Contains(msg, "unsupported model") || strings.Contains(msg, "model not found")
}

// defaultReasoningUnsupportedDetector 默认的推理强度不受支持判定
func defaultReasoningUnsupportedDetector(statusCode int, body []byte) bool {
	if statusCode != http.StatusBadRequest {
		return false
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	msg := strings.ToLower(payload.Error.Message)
	return strings.Contains(msg, "reasoning") &&
		(strings.Contains(msg, "unsupported") || strings.Contains(msg, "not supported"))
}

// classifyHTTPError 把失败响应映射为领域错误
func (c *Client) classifyHTTPError(statusCode int, body []byte) error {
	if c.unsupportedModel(statusCode, body) {
		return ErrUnsupportedModel
	}
	if c.reasoningUnsupported(statusCode, body) {
		return ErrReasoningUnsupported
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("代理服务返回错误 (HTTP %d): %s", statusCode, payload.Error.Message)
	}
	return fmt.Errorf("代理服务返回错误 (HTTP %d)", statusCode)
}

// postJSON 发送 JSON 请求并返回原始响应
// 非 2xx 状态在此统一分类，调用方拿到的响应保证可以开始读流
func (c *Client) postJSON(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求代理服务失败: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		res.Body.Close()
		return nil, c.classifyHTTPError(res.StatusCode, body)
	}
	return res, nil
}

// marshalBody 序列化请求体
func marshalBody(v any) (*bytes.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	return bytes.NewReader(data), nil
}

// maxTokensField 不同模型家族对最大令牌数的字段命名不同
func maxTokensField(model string) string {
	if strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o") {
		return "max_completion_tokens"
	}
	return "max_tokens"
}

// latencySince 以毫秒计的耗时
func latencySince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
