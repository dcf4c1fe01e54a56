package object

import "strings"

// 附件行里持久化的 web 路径前缀：本地盘走 /api/file/，S3 走 /api/s3file/。
// 引擎与 API 层只见 web 路径，绝不拿绝对路径开文件。
const (
	WebPathLocal = "/api/file/"
	WebPathS3    = "/api/s3file/"
)

// FileHandle 物化后的本地文件。IsTemporary 为 true 时文件位于临时目录，
// 调用方用完必须执行 Cleanup。
type FileHandle struct {
	LocalPath   string
	IsTemporary bool
	Cleanup     func()
}

// NormalizeWebPath 剥掉 web 路径前缀，返回存储层相对路径。
// 传入裸相对路径时原样返回（仅去掉首部斜杠）。
func NormalizeWebPath(p string) string {
	switch {
	case strings.HasPrefix(p, WebPathLocal):
		p = strings.TrimPrefix(p, WebPathLocal)
	case strings.HasPrefix(p, WebPathS3):
		p = strings.TrimPrefix(p, WebPathS3)
	}
	return strings.TrimPrefix(p, "/")
}
