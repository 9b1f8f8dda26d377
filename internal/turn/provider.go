package turn

import (
	"context"

	"github.com/purpose168/parley-cn/internal/provider"
)

// ChatStreamer 聊天补全流的读取接口
type ChatStreamer interface {
	Next() bool
	Current() provider.ChatChunk
	Err() error
	Close() error
}

// ImageStreamer 图片生成流的读取接口
type ImageStreamer interface {
	Next() bool
	Current() provider.ImageEvent
	Err() error
	Close() error
}

// Provider 回合协调器依赖的模型服务
// 测试里用脚本化的假实现替换
type Provider interface {
	StreamChat(ctx context.Context, req provider.ChatRequest) (ChatStreamer, error)
	StreamImage(ctx context.Context, req provider.ImageRequest) (ImageStreamer, error)
}

// clientProvider 把具体客户端适配到 Provider 接口
type clientProvider struct {
	client *provider.Client
}

// NewProvider 包装代理服务客户端
func NewProvider(client *provider.Client) Provider {
	return clientProvider{client: client}
}

func (p clientProvider) StreamChat(ctx context.Context, req provider.ChatRequest) (ChatStreamer, error) {
	stream, err := p.client.StreamChat(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (p clientProvider) StreamImage(ctx context.Context, req provider.ImageRequest) (ImageStreamer, error) {
	stream, err := p.client.StreamImage(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
