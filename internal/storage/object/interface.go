package object

import (
	"context"
	"io"
)

// BlobStore 附件字节存取适配器
type BlobStore interface {
	// GetFile 把对象物化为本地文件；IsTemporary 为 true 时调用方负责 Cleanup
	GetFile(ctx context.Context, path string) (*FileHandle, error)
	// GetFileBuffer 整块读取对象内容
	GetFileBuffer(ctx context.Context, path string) ([]byte, error)
	// UploadFile 写入对象，返回持久化到附件行的 web 路径
	UploadFile(ctx context.Context, path string, data []byte) (string, error)
	// UploadFileStream 流式写入；size 未知传 -1
	UploadFileStream(ctx context.Context, path string, r io.Reader, size int64) (string, error)
	// DeleteFile 删除对象
	DeleteFile(ctx context.Context, path string) error
	// RenameFile 同目录改名，返回新 web 路径
	RenameFile(ctx context.Context, oldPath, newPath string) (string, error)
	// MoveFile 跨目录移动，返回新 web 路径
	MoveFile(ctx context.Context, oldPath, newPath string) (string, error)
	// Close 关闭存储连接
	Close() error
}
