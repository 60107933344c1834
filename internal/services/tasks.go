package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-manager/api/internal/models"
	"task-manager/api/internal/repositories"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxListedTasks = 200
	DueThisWeek    = "this_week"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidTaskID    = errors.New("invalid task id")
	ErrNoFieldsToUpdate = errors.New("no fields to update")
)

type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	FindTask(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, ownerID string, id primitive.ObjectID, set bson.M) (*models.Task, error)
	DeleteTask(ctx context.Context, ownerID string, id primitive.ObjectID) error
}

type ListOptions struct {
	Status *models.Status
	Due    string
}

type TaskService interface {
	CreateTask(ctx context.Context, ownerID string, in models.TaskCreate) (*models.Task, error)
	GetTasks(ctx context.Context, ownerID string, opts ListOptions) ([]models.Task, error)
	GetTaskByID(ctx context.Context, ownerID, taskID string) (*models.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, in models.TaskUpdate) (*models.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
}

type TaskServiceImpl struct {
	store TaskStore
	now   func() time.Time
}

func NewTaskService(store TaskStore) *TaskServiceImpl {
	return &TaskServiceImpl{store: store, now: time.Now}
}

// ParseTaskID validates the ObjectID syntax before any query is issued.
func ParseTaskID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidTaskID
	}
	return oid, nil
}

// timestamp matches the millisecond precision BSON dates are stored with.
func (s *TaskServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, ownerID string, in models.TaskCreate) (*models.Task, error) {
	in.ApplyDefaults()
	now := s.timestamp()

	task := &models.Task{
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		task.DueDate = &due
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTasks(ctx context.Context, ownerID string, opts ListOptions) ([]models.Task, error) {
	filter := models.TaskFilter{
		Status: opts.Status,
		Limit:  MaxListedTasks,
	}

	if opts.Due == DueThisWeek {
		start := s.timestamp()
		end := start.Add(7 * 24 * time.Hour)
		filter.DueAfter = &start
		filter.DueUntil = &end
	}

	tasks, err := s.store.ListTasks(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) GetTaskByID(ctx context.Context, ownerID, taskID string) (*models.Task, error) {
	id, err := ParseTaskID(taskID)
	if err != nil {
		return nil, err
	}

	task, err := s.store.FindTask(ctx, ownerID, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, ownerID, taskID string, in models.TaskUpdate) (*models.Task, error) {
	id, err := ParseTaskID(taskID)
	if err != nil {
		return nil, err
	}

	set := in.Fields()
	if len(set) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	set["updated_at"] = s.timestamp()

	task, err := s.store.UpdateTask(ctx, ownerID, id, set)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	id, err := ParseTaskID(taskID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, ownerID, id); err != nil {
		return translateStoreError(err)
	}
	return nil
}

func translateStoreError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("task store: %w", err)
}
