package history

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "fetches"

type Repository interface {
	Insert(ctx context.Context, r *Record) error
	Recent(ctx context.Context, limit int64) ([]Record, error)
	FindByID(ctx context.Context, id string) (Record, error)
}

type mongoRepository struct {
	col    *mongo.Collection
	logger *log.Logger
}

func NewMongoRepository(db *mongo.Database, logger *log.Logger) (Repository, error) {
	repo := &mongoRepository{
		col:    db.Collection(CollectionName),
		logger: logger,
	}
	if err := repo.ensureIndexes(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// ensureIndexes keeps fetchId unique and lets Recent read newest first
func (r *mongoRepository) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fetchId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "kind", Value: 1}, {Key: "value", Value: 1}},
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)

	if err != nil && r.logger != nil {
		r.logger.Printf("failed to create indexes: %v", err)
	}
	return err
}

func (r *mongoRepository) Insert(ctx context.Context, rec *Record) error {
	res, err := r.col.InsertOne(ctx, rec)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ObjectID = id
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *mongoRepository) Recent(ctx context.Context, limit int64) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit)
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := r.col.FindOne(ctx, bson.M{"fetchId": id}).Decode(&rec)
	return rec, err
}
