package event

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"newsbee/internal/history"
)

type Publisher interface {
	PublishFetchRecorded(ctx context.Context, r *history.Record) error
}

// changeStream is the part of *mongo.ChangeStream the relay loop uses.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

type changeEvent struct {
	OperationType string         `bson:"operationType"`
	FullDocument  history.Record `bson:"fullDocument"`
}

// Service relays inserts into the fetch history collection to the message bus.
type Service struct {
	watch     func(ctx context.Context) (changeStream, error)
	publisher Publisher
	logger    *log.Logger
}

func NewService(col *mongo.Collection, publisher Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}

	return &Service{
		watch: func(ctx context.Context) (changeStream, error) {
			return col.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
		},
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) Run(ctx context.Context) {
	stream, err := s.watch(ctx)
	if err != nil {
		s.logger.Printf("events: failed to open change stream: %v", err)
		return
	}
	defer stream.Close(context.WithoutCancel(ctx))

	s.logger.Println("events: watching fetch history change stream...")

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.logger.Printf("events: failed decoding change event: %v", err)
			continue
		}

		rec := ev.FullDocument
		if rec.ID == "" {
			s.logger.Printf("events: skip %s event missing fetchId", ev.OperationType)
			continue
		}

		if err := s.publisher.PublishFetchRecorded(ctx, &rec); err != nil {
			s.logger.Printf("events: failed publishing fetch %s: %v", rec.ID, err)
			continue
		}

		s.logger.Printf("events: published fetch %s to message bus", rec.ID)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		s.logger.Printf("events: change stream closed with error: %v", err)
	} else {
		s.logger.Println("events: change stream stopped")
	}
}
