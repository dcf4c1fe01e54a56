// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误：对应核心错误分类，调用方用 errors.Is 判断
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidArg            = errors.New("invalid argument")
	ErrConfigMissing         = errors.New("config missing")
	ErrValidation            = errors.New("validation failed")
	ErrAuthFailed            = errors.New("auth failed")
	ErrCapabilityUnsupported = errors.New("capability unsupported")
	ErrUpstreamTransient     = errors.New("upstream transient error")
	ErrUpstreamPermanent     = errors.New("upstream permanent error")
	ErrStorage               = errors.New("storage error")
	ErrQueue                 = errors.New("queue error")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithKind 在保留原始错误链的同时挂上一个哨兵分类
func WithKind(kind error, err error) error {
	if err == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// ConfigMissingf 构造 ConfigMissing 类错误
func ConfigMissingf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfigMissing, fmt.Sprintf(format, args...))
}

// Validationf 构造 ValidationFailed 类错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Is 透传 errors.Is，省掉调用方的双导入
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsRetryable 上游瞬态与队列类错误可重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamTransient) || errors.Is(err, ErrQueue)
}
