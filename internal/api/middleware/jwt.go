package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"todolist/internal/model"
	"todolist/internal/pkg/apperr"
	"todolist/internal/pkg/metrics"
	"todolist/internal/pkg/token"
	"todolist/internal/store"

	"github.com/gin-gonic/gin"
)

const currentUserKey = "currentUser"

// TokenVerifier 校验令牌并返回 subject（用户邮箱）。
type TokenVerifier interface {
	Verify(tokenStr string) (string, error)
}

// UserFinder 按邮箱查找用户。
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// AuthMiddleware 校验 Bearer 令牌，并将对应用户写入上下文。
//
// 缺少令牌、令牌无效或过期、用户已不存在时一律返回 401。
func AuthMiddleware(verifier TokenVerifier, users UserFinder, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
			apperr.Abort(c, apperr.Unauthenticated("Not authenticated"))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
			apperr.Abort(c, apperr.Unauthenticated("Not authenticated"))
			return
		}

		email, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, token.ErrTokenExpired) {
				reason = "expired_token"
			}
			metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
			if logger != nil {
				logger.Debug("reject token", slog.String("reason", reason), slog.String("path", c.Request.URL.Path))
			}
			apperr.Abort(c, credentialsError())
			return
		}

		user, err := users.GetUserByEmail(c.Request.Context(), email)
		if errors.Is(err, store.ErrNotFound) {
			metrics.AuthFailuresTotal.WithLabelValues("unknown_user").Inc()
			apperr.Abort(c, credentialsError())
			return
		}
		if err != nil {
			if logger != nil {
				logger.Error("load current user failed", slog.String("error", err.Error()))
			}
			apperr.Abort(c, apperr.Internal("internal server error", err))
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser 返回 AuthMiddleware 写入的用户。
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

// SetCurrentUser 写入当前用户，供测试或上游中间件使用。
func SetCurrentUser(c *gin.Context, user *model.User) {
	c.Set(currentUserKey, user)
}

func credentialsError() *apperr.Error {
	return apperr.Unauthenticated("Could not validate credentials")
}
