package repositories

import (
	"context"
	"fmt"

	"task-manager/api/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskRepository scopes every query by owner; a task owned by someone else is
// indistinguishable from a missing one.
type TaskRepository struct {
	coll *mongo.Collection
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, task)
	return translateError(err)
}

func (r *TaskRepository) FindTask(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	err := r.coll.FindOne(ctx, ownerFilter(ownerID, id)).Decode(&task)
	if err != nil {
		return nil, translateError(err)
	}
	return &task, nil
}

func (r *TaskRepository) ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	query := bson.M{"user_id": ownerID}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.DueAfter != nil || filter.DueUntil != nil {
		due := bson.M{}
		if filter.DueAfter != nil {
			due["$gte"] = *filter.DueAfter
		}
		if filter.DueUntil != nil {
			due["$lte"] = *filter.DueUntil
		}
		query["due_date"] = due
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer cursor.Close(ctx)

	tasks := make([]models.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, ownerID string, id primitive.ObjectID, set bson.M) (*models.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var task models.Task
	err := r.coll.FindOneAndUpdate(ctx, ownerFilter(ownerID, id), bson.M{"$set": set}, opts).Decode(&task)
	if err != nil {
		return nil, translateError(err)
	}
	return &task, nil
}

func (r *TaskRepository) DeleteTask(ctx context.Context, ownerID string, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, ownerFilter(ownerID, id))
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func ownerFilter(ownerID string, id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "user_id": ownerID}
}
