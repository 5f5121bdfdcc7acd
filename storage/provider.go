// Package storage 持久化对象存储抽象与实现
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// Provider 存储提供者接口
// 定义了存储层的基本操作，所有存储实现必须遵循此接口
type Provider interface {
	// SaveWithContext 保存对象到存储
	SaveWithContext(ctx context.Context, key string, file io.Reader) error

	// GetWithContext 从存储获取对象
	GetWithContext(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteWithContext 从存储删除对象
	DeleteWithContext(ctx context.Context, key string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

// IsValidKey 校验对象 key 是否合法
// key 可以包含 '/' 分层（如 documents/abc123.jpg），但不允许
// 绝对路径、空段和任何形式的路径穿越。
func IsValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return false
	}
	if strings.Contains(key, "\\") {
		return false
	}
	if path.Clean(key) != key {
		return false
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
		for _, r := range segment {
			if !((r >= 'a' && r <= 'z') ||
				(r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') ||
				r == '-' || r == '_' || r == '.') {
				return false
			}
		}
	}

	return true
}
