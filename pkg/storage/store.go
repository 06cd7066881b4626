package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound = errors.New("object not found")
	// ErrTransient 标记可重试的连接类故障 (超时、限流、5xx)
	// 调用方用 errors.Is 区分“暂时失败”与“真实失败”
	ErrTransient = errors.New("transient storage failure")
)

// Store defines the interface for a blob storage backend.
// Implementations can be S3-compatible object storage or in-memory storage.
type Store interface {
	// ListKeys 遍历 bucket 中的全部 key (内部处理分页)
	// fn 返回错误时遍历立即终止并返回该错误
	ListKeys(ctx context.Context, fn func(key string) error) error

	// Get 根据 key 读取原始数据
	// 注意：这里返回的是 io.ReadCloser 而不是 []byte
	// 原因：备份大对象时直接流式写入本地文件，避免一次性读进内存
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 批量删除 key
	// 返回值: 单个 key 的失败明细 (空 map 表示全部成功) + 整体性错误
	// 删除不存在的 key 视为成功 (幂等)
	Delete(ctx context.Context, keys []string) (map[string]error, error)
}

// IsTransient 判断错误是否为暂时性故障
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
