package model

import (
	"bytes"
	"encoding/json"
)

// Optional 记录 JSON 字段是否出现在请求体中。
//
// 字段缺失时 Set 为 false；出现但为 null 时 Set 为 true 且 Value 为 nil。
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some 构造一个已赋值的 Optional。
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null 构造一个显式为 null 的 Optional。
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON 只会在字段出现时被调用。
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON 未赋值或为 null 时输出 null。
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
