package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"todolist/internal/api/auth"
	"todolist/internal/api/middleware"
	"todolist/internal/model"
	"todolist/internal/pkg/apperr"
	"todolist/internal/pkg/metrics"
	"todolist/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	defaultSkip  = 0
	defaultLimit = 100

	idempotencyHeader = "Idempotency-Key"
	todoNotFound      = "Todo not found"
)

// createTodoRequest 创建待办的请求参数。
type createTodoRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
}

// handleListTodos 返回当前用户的待办事项。
//
// GET /todos?skip=0&limit=100
func (s *Server) handleListTodos(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthenticated("Could not validate credentials"))
		return
	}

	skip, err := parseQueryInt(c, "skip", defaultSkip)
	if err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}
	limit, err := parseQueryInt(c, "limit", defaultLimit)
	if err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}

	todos, err := s.todoStore.ListTodos(c.Request.Context(), user.ID, skip, limit)
	if err != nil {
		s.logger.Error("list todos failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("list todos failed", err))
		return
	}

	resp := make([]auth.TodoResponse, 0, len(todos))
	for _, t := range todos {
		resp = append(resp, auth.NewTodoResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

// handleCreateTodo 为当前用户创建待办事项。
//
// 请求带 Idempotency-Key 且 Redis 可用时，同一用户重复的 key 返回 409。
//
// POST /todos
func (s *Server) handleCreateTodo(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthenticated("Could not validate credentials"))
		return
	}

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		apperr.Abort(c, apperr.BadRequest("title must not be empty"))
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	claimed := false
	if key != "" && s.deduper != nil {
		dup, err := s.deduper.Claim(ctx, user.ID, key)
		if err != nil {
			// Redis 故障时不阻塞创建
			s.logger.Warn("idempotency claim failed", slog.String("error", err.Error()))
		} else if dup {
			metrics.IdempotentReplaysTotal.Inc()
			s.logger.Info("duplicate create skipped", slog.Uint64("user_id", uint64(user.ID)))
			apperr.Abort(c, apperr.Duplicate("Duplicate request"))
			return
		} else {
			claimed = true
		}
	}

	todo := model.Todo{
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		OwnerID:     user.ID,
	}
	if err := s.todoStore.CreateTodo(ctx, &todo); err != nil {
		if claimed {
			if relErr := s.deduper.Release(ctx, user.ID, key); relErr != nil {
				s.logger.Warn("idempotency release failed", slog.String("error", relErr.Error()))
			}
		}
		s.logger.Error("create todo failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("create todo failed", err))
		return
	}

	metrics.TodoOperationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("todo created", slog.Uint64("user_id", uint64(user.ID)), slog.Uint64("todo_id", uint64(todo.ID)))
	c.JSON(http.StatusOK, auth.NewTodoResponse(todo))
}

// handleUpdateTodo 部分更新当前用户的待办事项。
//
// 只更新请求体中出现的字段；description 为 null 时清空描述。
//
// PUT /todos/:id
func (s *Server) handleUpdateTodo(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthenticated("Could not validate credentials"))
		return
	}
	id, ok := parseTodoID(c)
	if !ok {
		apperr.Abort(c, apperr.NotFound(todoNotFound))
		return
	}

	var patch model.TodoPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}
	if err := validatePatch(patch); err != nil {
		apperr.Abort(c, apperr.BadRequest(err.Error()))
		return
	}

	todo, err := s.todoStore.UpdateTodo(c.Request.Context(), user.ID, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.Abort(c, apperr.NotFound(todoNotFound))
			return
		}
		s.logger.Error("update todo failed", slog.Uint64("todo_id", uint64(id)), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("update todo failed", err))
		return
	}

	metrics.TodoOperationsTotal.WithLabelValues("update").Inc()
	c.JSON(http.StatusOK, auth.NewTodoResponse(*todo))
}

// handleDeleteTodo 删除当前用户的待办事项。
//
// DELETE /todos/:id
func (s *Server) handleDeleteTodo(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthenticated("Could not validate credentials"))
		return
	}
	id, ok := parseTodoID(c)
	if !ok {
		apperr.Abort(c, apperr.NotFound(todoNotFound))
		return
	}

	if err := s.todoStore.DeleteTodo(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.Abort(c, apperr.NotFound(todoNotFound))
			return
		}
		s.logger.Error("delete todo failed", slog.Uint64("todo_id", uint64(id)), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("delete todo failed", err))
		return
	}

	metrics.TodoOperationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("todo deleted", slog.Uint64("user_id", uint64(user.ID)), slog.Uint64("todo_id", uint64(id)))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleMe 返回当前用户及其全部待办事项。
//
// GET /me
func (s *Server) handleMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthenticated("Could not validate credentials"))
		return
	}
	todos, err := s.todoStore.ListTodos(c.Request.Context(), user.ID, 0, -1)
	if err != nil {
		s.logger.Error("list todos failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		apperr.Abort(c, apperr.Internal("list todos failed", err))
		return
	}
	c.JSON(http.StatusOK, auth.NewUserResponse(user, todos))
}

func validatePatch(patch model.TodoPatch) error {
	if patch.Title.Set && (patch.Title.Value == nil || strings.TrimSpace(*patch.Title.Value) == "") {
		return errors.New("title must not be empty")
	}
	if patch.Completed.Set && patch.Completed.Value == nil {
		return errors.New("completed must be a boolean")
	}
	return nil
}

// parseTodoID 解析路径中的 id，非法值与不存在的待办同样处理。
func parseTodoID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseQueryInt 解析查询参数中的非负整数，缺省时返回 def。
func parseQueryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must be non-negative", key)
	}
	return v, nil
}
