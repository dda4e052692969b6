package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind 错误分类。
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindConflict
	KindUnauthenticated
	KindNotFound
	KindDuplicate
)

// Error 是返回给调用方的结构化错误。
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Status 返回对应的 HTTP 状态码。
func (e *Error) Status() int {
	switch e.Kind {
	case KindBadRequest, KindConflict:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Conflict 唯一性冲突（如邮箱已注册），按 400 返回。
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Duplicate 重复提交的请求，按 409 返回。
func Duplicate(message string) *Error {
	return &Error{Kind: KindDuplicate, Message: message}
}

// Internal 包装内部错误，对外只暴露 message。
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// Abort 写入 {"detail": ...} 响应并终止后续处理。
//
// 401 响应附带 WWW-Authenticate: Bearer。非 *Error 按 500 处理。
func Abort(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Internal("internal server error", err)
	}
	if appErr.Kind == KindUnauthenticated {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if appErr.Cause != nil {
		_ = c.Error(appErr.Cause)
	}
	c.AbortWithStatusJSON(appErr.Status(), gin.H{"detail": appErr.Message})
}
