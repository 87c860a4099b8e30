package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cankoe/request-tester/internal/models"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	historyCollection  = "request_history"
	countersCollection = "counters"
)

// MongoStore keeps history in a collection whose integer _id comes from a
// counter document, mirroring an auto-increment column.
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
}

// NewMongoStore uses db for storage and ensures the timestamp index.
func NewMongoStore(ctx context.Context, client *mongo.Client, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{
		client:   client,
		records:  db.Collection(historyCollection),
		counters: db.Collection(countersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create index on %s.timestamp: %w", historyCollection, err)
	}

	log.Info().Str("collection", historyCollection).Msg("Indexes ensured successfully")
	return nil
}

// withSession runs fn inside a session that is ended on every return path.
func (s *MongoStore) withSession(ctx context.Context, fn func(mongo.SessionContext) error) error {
	return s.client.UseSession(ctx, fn)
}

func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": historyCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocating history id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Insert(ctx context.Context, rec *models.HistoryRecord) (int64, error) {
	err := s.withSession(ctx, func(sc mongo.SessionContext) error {
		id, err := s.nextID(sc)
		if err != nil {
			return err
		}
		doc := *rec
		doc.ID = id
		// BSON dates hold milliseconds
		doc.Timestamp = now().Truncate(time.Millisecond)
		if _, err := s.records.InsertOne(sc, doc); err != nil {
			return fmt.Errorf("inserting history: %w", err)
		}
		rec.ID = doc.ID
		rec.Timestamp = doc.Timestamp
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (s *MongoStore) List(ctx context.Context, limit, offset int) ([]models.HistoryRecord, error) {
	records := make([]models.HistoryRecord, 0)
	err := s.withSession(ctx, func(sc mongo.SessionContext) error {
		opts := options.Find().
			SetSkip(int64(offset)).
			SetLimit(int64(limit)).
			SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

		cursor, err := s.records.Find(sc, bson.M{}, opts)
		if err != nil {
			return fmt.Errorf("listing history: %w", err)
		}
		defer cursor.Close(sc)

		if err := cursor.All(sc, &records); err != nil {
			return fmt.Errorf("decoding history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) Get(ctx context.Context, id int64) (*models.HistoryRecord, error) {
	var rec models.HistoryRecord
	err := s.withSession(ctx, func(sc mongo.SessionContext) error {
		return s.records.FindOne(sc, bson.M{"_id": id}).Decode(&rec)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching history %d: %w", id, err)
	}
	return &rec, nil
}

func (s *MongoStore) Delete(ctx context.Context, id int64) error {
	return s.withSession(ctx, func(sc mongo.SessionContext) error {
		res, err := s.records.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("deleting history %d: %w", id, err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *MongoStore) DeleteAll(ctx context.Context) error {
	return s.withSession(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.records.DeleteMany(sc, bson.M{}); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
