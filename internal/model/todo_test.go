package model

import (
	"encoding/json"
	"testing"
)

func TestTodoPatch_DecodePresence(t *testing.T) {
	var p TodoPatch
	if err := json.Unmarshal([]byte(`{"completed": true}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Title.Set || p.Description.Set {
		t.Fatalf("expected title/description to be absent, got %+v", p)
	}
	if !p.Completed.Set || p.Completed.Value == nil || !*p.Completed.Value {
		t.Fatalf("expected completed=true, got %+v", p.Completed)
	}
}

func TestTodoPatch_DecodeNull(t *testing.T) {
	var p TodoPatch
	if err := json.Unmarshal([]byte(`{"description": null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Description.Set || p.Description.Value != nil {
		t.Fatalf("expected explicit null description, got %+v", p.Description)
	}
	if p.Empty() {
		t.Fatalf("explicit null should count as an update")
	}
}

func TestTodoPatch_DecodeWrongType(t *testing.T) {
	var p TodoPatch
	if err := json.Unmarshal([]byte(`{"completed": "yes"}`), &p); err == nil {
		t.Fatalf("expected error for non-bool completed")
	}
}

func TestTodoPatch_ApplyOnlyPresentFields(t *testing.T) {
	desc := "buy milk"
	todo := Todo{Title: "groceries", Description: &desc}

	patch := TodoPatch{Completed: Some(true)}
	patch.Apply(&todo)

	if todo.Title != "groceries" {
		t.Fatalf("title changed: %q", todo.Title)
	}
	if todo.Description == nil || *todo.Description != "buy milk" {
		t.Fatalf("description changed: %v", todo.Description)
	}
	if !todo.Completed {
		t.Fatalf("expected completed")
	}
}

func TestTodoPatch_ApplyClearsDescription(t *testing.T) {
	desc := "old"
	todo := Todo{Title: "t", Description: &desc}

	TodoPatch{Description: Null[string](), Title: Some("new")}.Apply(&todo)

	if todo.Description != nil {
		t.Fatalf("expected description cleared, got %q", *todo.Description)
	}
	if todo.Title != "new" {
		t.Fatalf("expected title updated, got %q", todo.Title)
	}
}

func TestTodoPatch_Empty(t *testing.T) {
	var p TodoPatch
	if err := json.Unmarshal([]byte(`{"id": 3, "owner_id": 9}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Empty() {
		t.Fatalf("unknown fields must not count as updates")
	}
}
