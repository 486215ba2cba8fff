package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskhub/internal/model"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.tasks().InsertOne(ctx, toTaskDoc(t))
	return mapErr(err)
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var d taskDoc
	if err := s.tasks().FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	t := d.task()
	return &t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	res, err := s.tasks().ReplaceOne(ctx, bson.M{"_id": t.ID}, toTaskDoc(t))
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.tasks().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, q scope.Query) ([]model.Task, int64, error) {
	filter := taskFilter(q.Filter)

	total, err := s.tasks().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	opts := options.Find().
		SetSort(taskSort(q.Sort)).
		SetSkip(int64(q.Page.Offset())).
		SetLimit(int64(q.Page.Size))
	cur, err := s.tasks().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, mapErr(err)
	}

	out := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.task())
	}
	return out, total, nil
}

type groupCount struct {
	Key string `bson:"_id"`
	N   int64  `bson:"n"`
}

func (s *Store) countBy(ctx context.Context, field string, f scope.Filter) ([]groupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: taskFilter(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.tasks().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapErr(err)
	}
	var out []groupCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context, f scope.Filter) (map[model.Status]int64, error) {
	groups, err := s.countBy(ctx, "status", f)
	if err != nil {
		return nil, err
	}
	out := store.EmptyStatusCounts()
	for _, g := range groups {
		out[model.Status(g.Key)] = g.N
	}
	return out, nil
}

func (s *Store) CountByPriority(ctx context.Context, f scope.Filter) (map[model.Priority]int64, error) {
	groups, err := s.countBy(ctx, "priority", f)
	if err != nil {
		return nil, err
	}
	out := store.EmptyPriorityCounts()
	for _, g := range groups {
		out[model.Priority(g.Key)] = g.N
	}
	return out, nil
}

func (s *Store) BulkAssign(ctx context.Context, f scope.Filter, ids []string, assigneeID string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	f.Criteria.IDs = ids
	res, err := s.tasks().UpdateMany(ctx, taskFilter(f), bulkAssignUpdate(assigneeID, now))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.MatchedCount, nil
}
