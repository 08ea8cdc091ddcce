package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the hosted alternative to FileStore: one document per
// user in a user_configs collection, upserted on every mutation.
type MongoStore struct {
	col *mongo.Collection
}

type userConfigDoc struct {
	UserID    int64        `bson:"user_id"`
	AdLink    string       `bson:"ad_link,omitempty"`
	Channel   string       `bson:"channel,omitempty"`
	Promo     *PromoConfig `bson:"promo,omitempty"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	col := client.Database("moviepost").Collection("user_configs")
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &MongoStore{col: col}, nil
}

func (m *MongoStore) get(userID int64) (*userConfigDoc, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var doc userConfigDoc
	err := m.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		return nil, false
	}
	return &doc, true
}

func (m *MongoStore) set(userID int64, fields bson.M) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fields["user_id"] = userID
	fields["updated_at"] = time.Now()
	_, err := m.col.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": fields},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoStore) AdLink(userID int64) (string, bool) {
	doc, ok := m.get(userID)
	if !ok || doc.AdLink == "" {
		return "", false
	}
	return doc.AdLink, true
}

func (m *MongoStore) SetAdLink(userID int64, link string) error {
	return m.set(userID, bson.M{"ad_link": link})
}

func (m *MongoStore) Channel(userID int64) (string, bool) {
	doc, ok := m.get(userID)
	if !ok || doc.Channel == "" {
		return "", false
	}
	return doc.Channel, true
}

func (m *MongoStore) SetChannel(userID int64, channel string) error {
	return m.set(userID, bson.M{"channel": channel})
}

func (m *MongoStore) Promo(userID int64) (PromoConfig, bool) {
	doc, ok := m.get(userID)
	if !ok || doc.Promo == nil {
		return PromoConfig{}, false
	}
	return *doc.Promo, true
}

func (m *MongoStore) SetPromo(userID int64, cfg PromoConfig) error {
	return m.set(userID, bson.M{"promo": cfg})
}
