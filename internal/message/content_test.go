package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMessage_AppendContent 测试文本内容增量追加
func TestMessage_AppendContent(t *testing.T) {
	t.Parallel()

	m := Message{Role: Assistant, Status: StatusPending}
	m.AppendContent("Hello")
	m.AppendContent(", world")

	require.Equal(t, "Hello, world", m.Content().Text)
	// 增量追加不应产生多个文本部分
	require.Len(t, m.Parts, 1)
}

// TestMessage_SetImage 测试图片内容的整体替换
// 增量质量的图片载荷总是保留最近一次累积结果
func TestMessage_SetImage(t *testing.T) {
	t.Parallel()

	m := Message{Role: Assistant}
	m.SetImage(ImageContent{CacheRef: "cache:aaa", Progress: 30})
	m.SetImage(ImageContent{CacheRef: "cache:bbb", Progress: 70})

	imgs := m.ImageContents()
	require.Len(t, imgs, 1)
	require.Equal(t, "cache:bbb", imgs[0].CacheRef)
	require.Equal(t, int64(70), imgs[0].Progress)
}

// TestMessage_FinishPart 测试结束部分的读取与替换
func TestMessage_FinishPart(t *testing.T) {
	t.Parallel()

	m := Message{Role: Assistant}
	require.False(t, m.IsFinished())
	require.Nil(t, m.FinishPart())

	m.SetFinish(Finish{Reason: FinishReasonCanceled, Time: 123})
	require.True(t, m.IsFinished())
	require.Equal(t, FinishReasonCanceled, m.FinishReason())

	// 再次设置应原地替换而不是追加
	m.SetFinish(Finish{Reason: FinishReasonEndTurn, Time: 456})
	require.Equal(t, FinishReasonEndTurn, m.FinishReason())
	require.Len(t, m.Parts, 1)
}

// TestMarshalParts_RoundTrip 测试内容部分的标签化序列化与反序列化
func TestMarshalParts_RoundTrip(t *testing.T) {
	t.Parallel()

	parts := []ContentPart{
		TextContent{Text: "看看这张图"},
		ImageContent{CacheRef: "cache:deadbeef", MIMEType: "image/png", GenerationID: "gen-1", Progress: 100},
		Usage{PromptTokens: 12, CompletionTokens: 34, LatencyMS: 560, Cost: 0.0021},
		Finish{Reason: FinishReasonEndTurn, Time: 1700000000},
	}

	data, err := marshalParts(parts)
	require.NoError(t, err)

	got, err := unmarshalParts(data)
	require.NoError(t, err)
	require.Equal(t, parts, got)
}

// TestUnmarshalParts_UnknownType 测试未知内容类型的错误处理
func TestUnmarshalParts_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := unmarshalParts([]byte(`[{"type":"bogus","data":{}}]`))
	require.Error(t, err)
}

// TestMessage_Clone 测试消息克隆不共享 Parts 底层数组
func TestMessage_Clone(t *testing.T) {
	t.Parallel()

	m := Message{Role: Assistant}
	m.AppendContent("原始")

	clone := m.Clone()
	m.SetContent("已修改")

	require.Equal(t, "原始", clone.Content().Text)
	require.Equal(t, "已修改", m.Content().Text)
}
