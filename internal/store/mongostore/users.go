package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskhub/internal/model"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.users().InsertOne(ctx, toUserDoc(u))
	return mapErr(err)
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var d userDoc
	if err := s.users().FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	u := d.user()
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": model.NormalizeEmail(email)})
}

func (s *Store) ListUsers(ctx context.Context, q scope.UserQuery) ([]model.User, int64, error) {
	filter := userFilter(q.Filter)
	total, err := s.users().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Page.Offset())).
		SetLimit(int64(q.Page.Size))
	cur, err := s.users().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, mapErr(err)
	}

	out := make([]model.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.user())
	}
	return out, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := s.users().ReplaceOne(ctx, bson.M{"_id": u.ID}, toUserDoc(u))
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
