// Package stringext 提供字符串处理相关的扩展功能
package stringext

import "strings"

// TruncateTitle 从用户输入派生聊天标题
// 参数：
//   - text: 用户的首条消息文本
//   - limit: 标题的最大字符数（按 rune 计数）
//
// 返回值：
//   - 返回派生后的标题；超过 limit 时截断前 limit 个字符并追加 "..."
//
// 标题派生前会先规范化空白字符，避免多行输入产生换行标题
func TruncateTitle(text string, limit int) string {
	text = NormalizeSpace(text)
	// 换行后的首行作为标题来源
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// NormalizeSpace 规范化给定内容字符串中的空白字符
// 参数：
//   - content: 需要规范化的内容字符串
//
// 返回值：
//   - 返回规范化后的字符串
//
// 该函数执行以下规范化操作：
//  1. 将 Windows 风格的换行符（\r\n）替换为 Unix 风格的换行符（\n）
//  2. 将制表符（\t）转换为四个空格
//  3. 去除字符串首尾的空白字符
func NormalizeSpace(content string) string {
	// 将 Windows 换行符替换为 Unix 换行符
	content = strings.ReplaceAll(content, "\r\n", "\n")
	// 将制表符转换为四个空格
	content = strings.ReplaceAll(content, "\t", "    ")
	// 去除首尾空白字符
	content = strings.TrimSpace(content)
	return content
}
