package errors

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 用于统一管理客户端错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeNetworkError // 非结构化错误按网络/传输错误处理
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "请求失败，请稍后重试"
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 会话/认证 20000-20999
	CodeUnauthorized = 20001
	CodeTokenExpired = 20002

	// 聊天访问 21000-21999
	CodeChatForbidden        = 21001
	CodeConversationNotFound = 21002

	// 输入校验 22000-22999
	CodeValidation = 22001

	// 网络/传输 23000-23999
	CodeNetworkError  = 23001
	CodeChannelClosed = 23002
)

// ============== 预定义错误 ==============

// 会话/认证
var (
	ErrUnauthorized = NewError(CodeUnauthorized, "登录已过期，请重新登录")
	ErrTokenExpired = NewError(CodeTokenExpired, "Token 已过期")
)

// 聊天访问
var (
	ErrChatForbidden        = NewError(CodeChatForbidden, "无权访问该会话")
	ErrConversationNotFound = NewError(CodeConversationNotFound, "会话不存在")
)

// 输入校验
var (
	ErrValidation = NewError(CodeValidation, "参数校验失败")
)

// 网络/传输
var (
	ErrNetwork       = NewError(CodeNetworkError, "网络错误，请稍后重试")
	ErrChannelClosed = NewError(CodeChannelClosed, "实时连接已断开")
)
