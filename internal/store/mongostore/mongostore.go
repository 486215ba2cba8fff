// Package mongostore is the MongoDB backend of store.Store.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"taskhub/internal/store"
)

const (
	tasksCollection   = "tasks"
	usersCollection   = "users"
	revokedCollection = "revoked_tokens"
)

type Store struct {
	cli *mongo.Client
	db  *mongo.Database
}

var _ store.Store = (*Store)(nil)

// New connects to uri, pings the primary and makes sure the indexes exist.
func New(ctx context.Context, uri, database string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongo: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	s := &Store{cli: cli, db: cli.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "team", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	if _, err := s.db.Collection(tasksCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "team", Value: 1}}},
		{Keys: bson.D{{Key: "creatorId", Value: 1}}},
		{Keys: bson.D{{Key: "assigneeId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	// Markers expire with the token they revoke.
	if _, err := s.db.Collection(revokedCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return fmt.Errorf("failed to create revocation index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.cli.Disconnect(ctx)
}

func (s *Store) tasks() *mongo.Collection   { return s.db.Collection(tasksCollection) }
func (s *Store) users() *mongo.Collection   { return s.db.Collection(usersCollection) }
func (s *Store) revoked() *mongo.Collection { return s.db.Collection(revokedCollection) }

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	}
	return err
}
