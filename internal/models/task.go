package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is the stored document. UserID is the owner and never changes after creation.
type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      string             `bson:"user_id"`
	Title       string             `bson:"title"`
	Description *string            `bson:"description,omitempty"`
	Priority    Priority           `bson:"priority"`
	Status      Status             `bson:"status"`
	DueDate     *time.Time         `bson:"due_date,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

type TaskOut struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) Out() TaskOut {
	return TaskOut{
		ID:          t.ID.Hex(),
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type TaskCreate struct {
	Title       string     `json:"title" binding:"required,min=1,max=120"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Priority    Priority   `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      Status     `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	DueDate     *time.Time `json:"due_date"`
}

// ApplyDefaults fills priority and status when the client omitted them.
func (in *TaskCreate) ApplyDefaults() {
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
}

// TaskUpdate is a partial update: nil fields are left untouched.
type TaskUpdate struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=120"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Priority    *Priority  `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      *Status    `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	DueDate     *time.Time `json:"due_date"`
}

func (u TaskUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Fields returns the $set document for the fields present in the update.
func (u TaskUpdate) Fields() bson.M {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Priority != nil {
		set["priority"] = *u.Priority
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.DueDate != nil {
		set["due_date"] = u.DueDate.UTC()
	}
	return set
}

type TaskFilter struct {
	Status   *Status
	DueAfter *time.Time
	DueUntil *time.Time
	Limit    int64
}

// Matches reports whether t satisfies the filter, ignoring Limit.
func (f TaskFilter) Matches(t *Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.DueAfter != nil || f.DueUntil != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueAfter != nil && t.DueDate.Before(*f.DueAfter) {
			return false
		}
		if f.DueUntil != nil && t.DueDate.After(*f.DueUntil) {
			return false
		}
	}
	return true
}
