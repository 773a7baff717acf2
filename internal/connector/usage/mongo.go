package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/johnwards/pipemon/internal/domain"
)

// Collection holds one document per account.
const Collection = "usage_data"

// DocumentStore is the persistence the usage connector needs from MongoDB.
type DocumentStore interface {
	FindAll(ctx context.Context) ([]domain.UsageRecord, error)
	// FindOne returns nil and no error when the account has no document.
	FindOne(ctx context.Context, accountID string) (*domain.UsageRecord, error)
	Upsert(ctx context.Context, rec domain.UsageRecord) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a DocumentStore.
type Dialer func(ctx context.Context, uri, database string) (DocumentStore, error)

type usageDoc struct {
	AccountID          string    `bson:"account_id"`
	LastLoginDays      *int      `bson:"last_login_days"`
	Sessions30d        int       `bson:"sessions_30d"`
	FeaturesUsed       []string  `bson:"features_used"`
	AvgSessionDuration float64   `bson:"avg_session_duration"`
	UpdatedAt          time.Time `bson:"updated_at,omitempty"`
}

func (d usageDoc) record() domain.UsageRecord {
	features := d.FeaturesUsed
	if features == nil {
		features = []string{}
	}
	return domain.UsageRecord{
		AccountID:          d.AccountID,
		LastLoginDays:      d.LastLoginDays,
		Sessions30d:        d.Sessions30d,
		FeaturesUsed:       features,
		AvgSessionDuration: d.AvgSessionDuration,
	}
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// DialMongo connects with the stable server API and verifies the deployment
// with a ping.
func DialMongo(ctx context.Context, uri, database string) (DocumentStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &mongoStore{
		client: client,
		coll:   client.Database(database).Collection(Collection),
	}, nil
}

func (s *mongoStore) FindAll(ctx context.Context) ([]domain.UsageRecord, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find usage: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []domain.UsageRecord
	for cur.Next(ctx) {
		var doc usageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode usage: %w", err)
		}
		if doc.AccountID == "" {
			continue
		}
		out = append(out, doc.record())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return out, nil
}

func (s *mongoStore) FindOne(ctx context.Context, accountID string) (*domain.UsageRecord, error) {
	var doc usageDoc
	err := s.coll.FindOne(ctx, bson.M{"account_id": accountID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find usage %s: %w", accountID, err)
	}
	rec := doc.record()
	return &rec, nil
}

func (s *mongoStore) Upsert(ctx context.Context, rec domain.UsageRecord) error {
	doc := usageDoc{
		AccountID:          rec.AccountID,
		LastLoginDays:      rec.LastLoginDays,
		Sessions30d:        rec.Sessions30d,
		FeaturesUsed:       rec.FeaturesUsed,
		AvgSessionDuration: rec.AvgSessionDuration,
		UpdatedAt:          time.Now().UTC(),
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"account_id": rec.AccountID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert usage %s: %w", rec.AccountID, err)
	}
	return nil
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
