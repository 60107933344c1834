package services_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"task-manager/api/internal/models"
	"task-manager/api/internal/repositories"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errStoreDown = errors.New("store unavailable")

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
	fail  bool
	// dupOnCreate simulates a concurrent insert winning the unique index
	dupOnCreate bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]models.User{}}
}

func (s *fakeUserStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}
	if _, ok := s.users[user.Email]; ok || s.dupOnCreate {
		return repositories.ErrDuplicateKey
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.Email] = *user
	return nil
}

func (s *fakeUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errStoreDown
	}
	user, ok := s.users[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &user, nil
}

type fakeTaskStore struct {
	mu         sync.Mutex
	tasks      map[primitive.ObjectID]models.Task
	lastFilter models.TaskFilter
	calls      int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[primitive.ObjectID]models.Task{}}
}

func (s *fakeTaskStore) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *fakeTaskStore) FindTask(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	task, ok := s.tasks[id]
	if !ok || task.UserID != ownerID {
		return nil, repositories.ErrNotFound
	}
	return &task, nil
}

func (s *fakeTaskStore) ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastFilter = filter

	out := make([]models.Task, 0)
	for _, task := range s.tasks {
		task := task
		if task.UserID == ownerID && filter.Matches(&task) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeTaskStore) UpdateTask(ctx context.Context, ownerID string, id primitive.ObjectID, set bson.M) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	task, ok := s.tasks[id]
	if !ok || task.UserID != ownerID {
		return nil, repositories.ErrNotFound
	}
	for key, value := range set {
		switch key {
		case "title":
			task.Title = value.(string)
		case "description":
			d := value.(string)
			task.Description = &d
		case "priority":
			task.Priority = value.(models.Priority)
		case "status":
			task.Status = value.(models.Status)
		case "due_date":
			due := value.(time.Time)
			task.DueDate = &due
		case "updated_at":
			task.UpdatedAt = value.(time.Time)
		}
	}
	s.tasks[id] = task
	return &task, nil
}

func (s *fakeTaskStore) DeleteTask(ctx context.Context, ownerID string, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	task, ok := s.tasks[id]
	if !ok || task.UserID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
