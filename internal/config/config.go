// Package config 提供应用配置的加载与模型定价计算
package config

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/purpose168/parley-cn/internal/home"
	"github.com/purpose168/parley-cn/internal/message"
)

// 推理强度的合法取值
const (
	ReasoningLow  = "low"
	ReasoningMed  = "medium"
	ReasoningHigh = "high"
	// ReasoningNone 面向不支持推理的模型
	ReasoningNone = "no-reasoning"
)

// 应用名称，用于推导默认数据目录
const appName = "parley"

// ModelPricing 模型每百万令牌的定价（美元）
type ModelPricing struct {
	InputPerM  float64 // 每百万输入令牌价格
	OutputPerM float64 // 每百万输出令牌价格
}

// Defaults 新聊天的默认生成参数
type Defaults struct {
	Model           string // 默认模型
	ReasoningEffort string // 默认推理强度
	VoiceMode       bool   // 默认是否启用语音模式
}

// Debounce 各类延迟持久化的时间窗口
type Debounce struct {
	// Placeholder 流式回复占位消息写入数据库的节流间隔
	Placeholder time.Duration
	// Snapshot 聊天索引快照写盘的节流间隔
	Snapshot time.Duration
}

// Config 应用运行配置
type Config struct {
	APIKey  string // 代理服务的 API 密钥
	BaseURL string // 代理服务地址
	// DataDir 数据库、图片缓存与快照的存放目录
	DataDir string
	// FallbackDir 主目录写入失败时的备用快照目录
	FallbackDir  string
	Defaults     Defaults
	Debounce     Debounce
	SystemPrompt string
	// Temperature 聊天补全的采样温度
	Temperature float64
	// MaxOutputTokens 单次回复的最大令牌数，0 表示使用服务端默认值
	MaxOutputTokens int64
	// Pricing 各模型定价表，键为模型名称
	Pricing map[string]ModelPricing
	Debug   bool
}

// defaultPricing 内置定价表
// 未列出的模型按未知定价处理
func defaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"gpt-5.1":      {InputPerM: 1.25, OutputPerM: 10},
		"gpt-5.1-mini": {InputPerM: 0.25, OutputPerM: 2},
		"gpt-5.1-nano": {InputPerM: 0.05, OutputPerM: 0.4},
	}
}

// Load 加载应用配置
// 依次读取工作目录的 .env 文件与环境变量，环境变量优先
func Load() (*Config, error) {
	// .env 不存在时静默跳过
	_ = godotenv.Load()

	dataDir := home.Long(os.Getenv("PARLEY_DATA_DIR"))
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("无法确定配置目录: %w", err)
		}
		dataDir = filepath.Join(base, appName)
	}

	cfg := &Config{
		APIKey:      os.Getenv("PARLEY_API_KEY"),
		BaseURL:     cmp.Or(os.Getenv("PARLEY_BASE_URL"), "https://api.parley.dev/v1"),
		DataDir:     dataDir,
		FallbackDir: cmp.Or(os.Getenv("PARLEY_FALLBACK_DIR"), filepath.Join(os.TempDir(), appName)),
		Defaults: Defaults{
			Model:           cmp.Or(os.Getenv("PARLEY_DEFAULT_MODEL"), "gpt-5.1"),
			ReasoningEffort: cmp.Or(os.Getenv("PARLEY_REASONING_EFFORT"), ReasoningMed),
			VoiceMode:       boolEnv("PARLEY_VOICE_MODE"),
		},
		Debounce: Debounce{
			Placeholder: durationEnv("PARLEY_PLACEHOLDER_DEBOUNCE", 500*time.Millisecond),
			Snapshot:    durationEnv("PARLEY_SNAPSHOT_DEBOUNCE", 200*time.Millisecond),
		},
		SystemPrompt:    cmp.Or(os.Getenv("PARLEY_SYSTEM_PROMPT"), defaultSystemPrompt),
		Temperature:     floatEnv("PARLEY_TEMPERATURE", 1.0),
		MaxOutputTokens: intEnv("PARLEY_MAX_OUTPUT_TOKENS", 0),
		Pricing:         defaultPricing(),
		Debug:           boolEnv("PARLEY_DEBUG"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate 校验配置取值
func (c *Config) validate() error {
	switch c.Defaults.ReasoningEffort {
	case ReasoningLow, ReasoningMed, ReasoningHigh, ReasoningNone:
	default:
		return fmt.Errorf("无效的推理强度: %q", c.Defaults.ReasoningEffort)
	}
	return nil
}

// CostFor 按定价表计算一次用量的成本
// 模型不在定价表中时返回 message.UnknownCost
func (c *Config) CostFor(model string, promptTokens, completionTokens int64) float64 {
	pricing, ok := c.Pricing[model]
	if !ok {
		return message.UnknownCost
	}
	return float64(promptTokens)/1e6*pricing.InputPerM +
		float64(completionTokens)/1e6*pricing.OutputPerM
}

// boolEnv 读取布尔环境变量，无法解析时为 false
func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// floatEnv 读取浮点环境变量，缺失或无法解析时返回默认值
func floatEnv(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

// intEnv 读取整数环境变量，缺失或无法解析时返回默认值
func intEnv(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

// durationEnv 读取时长环境变量，缺失或无法解析时返回默认值
func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// defaultSystemPrompt 默认系统提示词
const defaultSystemPrompt = "你是一位乐于助人的助手。回答保持简洁、准确，使用用户的语言作答。"
