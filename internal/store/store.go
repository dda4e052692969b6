package store

import (
	"context"
	"errors"
	"fmt"

	"todolist/internal/config"
	"todolist/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

var (
	// ErrNotFound 记录不存在，或不属于当前用户。
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken 邮箱已被注册。
	ErrEmailTaken = errors.New("email already registered")
)

// Store 基于 gorm 的用户与待办事项存储。
type Store struct {
	db *gorm.DB
}

// Open 按驱动连接数据库并执行自动迁移。
//
// 参数:
//
//	cfg: 数据库配置（driver: sqlite / mysql / postgres）
//
// 返回值:
//
//	*Store: 存储实例
//	error: 连接或迁移失败返回错误
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Todo{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return New(db), nil
}

// New 使用已有的 gorm 连接创建 Store。
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping 检查数据库连通性。
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

// Close 关闭底层连接池。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser 创建用户，邮箱已存在时返回 ErrEmailTaken。
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			// 并发注册时由唯一索引兜底
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

// GetUserByEmail 按邮箱精确查找用户。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListTodos 返回 ownerID 的待办事项，按创建顺序分页。limit 小于 0 表示不限制。
func (s *Store) ListTodos(ctx context.Context, ownerID uint, skip, limit int) ([]model.Todo, error) {
	todos := []model.Todo{}
	if limit == 0 {
		return todos, nil
	}
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// CreateTodo 保存新的待办事项，OwnerID 必须由调用方设置。
func (s *Store) CreateTodo(ctx context.Context, todo *model.Todo) error {
	if todo.OwnerID == 0 {
		return errors.New("todo owner is required")
	}
	if err := s.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// UpdateTodo 在事务内锁定 (id, ownerID) 对应的行并应用部分更新。
//
// 行不存在或不属于 ownerID 时返回 ErrNotFound。
func (s *Store) UpdateTodo(ctx context.Context, ownerID, id uint, patch model.TodoPatch) (*model.Todo, error) {
	var todo model.Todo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwnedTodo(tx, ownerID, id, &todo); err != nil {
			return err
		}
		patch.Apply(&todo)
		if err := tx.Save(&todo).Error; err != nil {
			return fmt.Errorf("save todo: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

// DeleteTodo 删除 (id, ownerID) 对应的待办事项。
func (s *Store) DeleteTodo(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var todo model.Todo
		if err := lockOwnedTodo(tx, ownerID, id, &todo); err != nil {
			return err
		}
		if err := tx.Delete(&todo).Error; err != nil {
			return fmt.Errorf("delete todo: %w", err)
		}
		return nil
	})
}

func lockOwnedTodo(tx *gorm.DB, ownerID, id uint, todo *model.Todo) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(todo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load todo: %w", err)
	}
	return nil
}
