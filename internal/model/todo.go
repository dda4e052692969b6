package model

import "time"

// Todo 表示一条待办事项。
//
// 每条待办事项只属于一个用户，读写都必须带上 owner_id 条件。
type Todo struct {
	ID        uint      `gorm:"primaryKey"` // 待办 ID
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	Title       string  `gorm:"type:varchar(255);not null"` // 标题
	Description *string `gorm:"type:text"`                  // 描述（可为空）
	Completed   bool    `gorm:"not null;default:false"`     // 是否完成
	OwnerID     uint    `gorm:"not null;index"`             // 所属用户 ID
}

// TodoPatch 描述一次部分更新，只有出现在请求体中的字段才会被应用。
type TodoPatch struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Completed   Optional[bool]   `json:"completed"`
}

// Empty 判断是否没有任何字段需要更新。
func (p TodoPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Completed.Set
}

// Apply 将出现的字段写入 todo。
func (p TodoPatch) Apply(todo *Todo) {
	if p.Title.Set && p.Title.Value != nil {
		todo.Title = *p.Title.Value
	}
	if p.Description.Set {
		todo.Description = p.Description.Value
	}
	if p.Completed.Set && p.Completed.Value != nil {
		todo.Completed = *p.Completed.Value
	}
}
