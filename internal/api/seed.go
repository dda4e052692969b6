package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"todolist/internal/model"
	"todolist/internal/store"
)

const (
	demoEmail    = "demo@todolist.local"
	demoPassword = "demo-password"
)

var demoTodos = []struct {
	title       string
	description string
	completed   bool
}{
	{"Register an account", "POST /register with email and password", true},
	{"Log in", "POST /login returns a bearer token", false},
	{"Add your first todo", "POST /todos with a title", false},
}

// SeedDemoData 初始化本地演示账号及几条待办。
//
// 账号已存在时不做任何修改，可重复调用。
func (s *Server) SeedDemoData(ctx context.Context) error {
	_, err := s.store.GetUserByEmail(ctx, demoEmail)
	if err == nil {
		s.logger.Debug("demo user exists, skip seeding", slog.String("email", demoEmail))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("query demo user: %w", err)
	}

	hash, err := s.hasher.Hash(demoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	user := model.User{
		Email:    demoEmail,
		Password: hash,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("create demo user: %w", err)
	}

	for _, d := range demoTodos {
		desc := d.description
		todo := model.Todo{
			Title:       d.title,
			Description: &desc,
			Completed:   d.completed,
			OwnerID:     user.ID,
		}
		if err := s.store.CreateTodo(ctx, &todo); err != nil {
			return fmt.Errorf("create demo todo: %w", err)
		}
	}

	s.logger.Info("demo data seeded", slog.String("email", demoEmail), slog.Int("todos", len(demoTodos)))
	return nil
}
