package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"todolist/internal/model"
	"todolist/internal/pkg/apperr"
	"todolist/internal/pkg/metrics"
	"todolist/internal/pkg/notify"
	"todolist/internal/pkg/password"
	"todolist/internal/store"

	"github.com/gin-gonic/gin"
)

// UserStore 是注册与登录所需的存储操作。
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// PasswordHasher 哈希与校验密码。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer 为用户邮箱签发访问令牌。
type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

// Handler 提供注册与登录接口。
type Handler struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewHandler 创建 Auth Handler。notifier 可以为 nil。
func NewHandler(users UserStore, hasher PasswordHasher, tokens TokenIssuer, notifier notify.Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserResponse 对外暴露的用户信息，不包含密码哈希。
type UserResponse struct {
	ID    uint           `json:"id"`
	Email string         `json:"email"`
	Todos []TodoResponse `json:"todos"`
}

// TodoResponse 对外暴露的待办事项。
type TodoResponse struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	OwnerID     uint    `json:"owner_id"`
}

// NewTodoResponse 转换为响应结构。
func NewTodoResponse(t model.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		OwnerID:     t.OwnerID,
	}
}

// NewUserResponse 转换为响应结构，todos 为空时输出 []。
func NewUserResponse(u *model.User, todos []model.Todo) UserResponse {
	resp := UserResponse{ID: u.ID, Email: u.Email, Todos: make([]TodoResponse, 0, len(todos))}
	for _, t := range todos {
		resp.Todos = append(resp.Todos, NewTodoResponse(t))
	}
	return resp
}

// Register 创建新用户。
//
// POST /register
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		apperr.Abort(c, apperr.BadRequest("email is required"))
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			apperr.Abort(c, apperr.BadRequest("password must be at most 72 bytes"))
			return
		}
		h.logger.Error("hash password failed", slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("hash password failed", err))
		return
	}

	user := model.User{
		Email:    email,
		Password: hash,
	}
	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			h.logger.Info("register rejected: email taken", slog.String("email", email))
			apperr.Abort(c, apperr.Conflict("Email already registered"))
			return
		}
		h.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("create user failed", err))
		return
	}

	metrics.UsersRegisteredTotal.Inc()
	h.logger.Info("user registered", slog.String("email", email), slog.Uint64("user_id", uint64(user.ID)))

	if h.notifier != nil {
		if err := h.notifier.SendWelcome(c.Request.Context(), email); err != nil {
			h.logger.Warn("send welcome email failed", slog.String("email", email), slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusOK, NewUserResponse(&user, nil))
}

// Login 校验用户并返回访问令牌。
//
// 邮箱不存在与密码错误返回完全相同的响应。
//
// POST /login
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}
	email := strings.TrimSpace(req.Email)

	user, err := h.users.GetUserByEmail(c.Request.Context(), email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("query user failed", slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("query user failed", err))
		return
	}
	if user == nil || !h.hasher.Verify(req.Password, user.Password) {
		metrics.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
		h.logger.Info("login rejected", slog.String("email", email))
		apperr.Abort(c, apperr.Unauthenticated("Incorrect username or password"))
		return
	}

	accessToken, _, err := h.tokens.Issue(user.Email)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("sign token failed", err))
		return
	}

	h.logger.Info("user logged in", slog.String("email", email))
	c.JSON(http.StatusOK, tokenResponse{AccessToken: accessToken, TokenType: "bearer"})
}
