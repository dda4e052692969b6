package model

import "time"

// User 表示系统用户。
//
// Email 按注册时的原样存储（区分大小写），唯一性由唯一索引保证。
type User struct {
	ID        uint      `gorm:"primaryKey"`                             // 用户 ID
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null"` // 邮箱（唯一）
	Password  string    `gorm:"not null" json:"-"`                      // bcrypt 哈希
	CreatedAt time.Time // 创建时间

	Todos []Todo `gorm:"foreignKey:OwnerID"`
}
