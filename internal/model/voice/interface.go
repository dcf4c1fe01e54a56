package voice

import (
	"context"
	"io"
)

// Client 语音转写客户端接口
type Client interface {
	// Listen 转写一段音频，filename 携带扩展名提示（如 "memo.mp3"）
	Listen(ctx context.Context, audio io.Reader, filename string) (string, error)
	// Name 返回模型名称
	Name() string
}
