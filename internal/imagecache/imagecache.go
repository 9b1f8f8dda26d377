// Package imagecache 提供按内容寻址的本地图片缓存
// 消息中只保留 cache:<id> 形式的引用，图片字节落在磁盘上
package imagecache

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
)

// refPrefix 消息内容中图片引用的前缀
const refPrefix = "cache:"

// Cache 基于目录的图片缓存
type Cache struct {
	dir string
}

// New 创建图片缓存，目录不存在时自动建立
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("无法创建图片缓存目录: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Ref 将缓存ID包装为消息内容中的引用
func Ref(id string) string {
	return refPrefix + id
}

// ParseRef 解析消息内容中的图片引用
func ParseRef(ref string) (string, bool) {
	id, ok := strings.CutPrefix(ref, refPrefix)
	return id, ok && id != ""
}

// Store 解码并存入一张 base64 编码的图片，返回内容哈希ID
// 相同内容重复存入是幂等的
func (c *Cache) Store(b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("图片数据不是有效的 base64 编码: %w", err)
	}
	id := fmt.Sprintf("%x", xxh3.Hash(data))
	path := c.path(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	// 先写临时文件再改名，避免读到写了一半的图片
	tmp, err := os.CreateTemp(c.dir, "img-*")
	if err != nil {
		return "", fmt.Errorf("无法创建图片临时文件: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("写入图片数据失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return id, nil
}

// Retrieve 按ID取回图片并重新编码为 base64
func (c *Cache) Retrieve(id string) (string, error) {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		return "", fmt.Errorf("读取缓存图片 %s 失败: %w", id, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Delete 删除指定图片，不存在时视为成功
func (c *Cache) Delete(id string) error {
	err := os.Remove(c.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup 清理超过保留期限的图片，返回删除数量
func (c *Cache) Cleanup(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	var removed int
	var freed uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			slog.Warn("清理缓存图片失败", "file", entry.Name(), "error", err)
			continue
		}
		removed++
		freed += uint64(info.Size())
	}
	if removed > 0 {
		slog.Info("图片缓存清理完成", "removed", removed, "freed", humanize.Bytes(freed))
	}
	return removed, nil
}

func (c *Cache) path(id string) string {
	return filepath.Join(c.dir, id)
}
