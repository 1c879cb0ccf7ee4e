package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SnapshotRepo is the durable tenant-scoped key/value store behind the
// dashboard's cold-start cache. One document per (tenant, key).
type SnapshotRepo struct {
	collection *mongo.Collection
}

type snapshotDoc struct {
	ID        string    `bson:"_id"`
	Tenant    string    `bson:"tenant"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewSnapshotRepo(base *BaseRepo) *SnapshotRepo {
	return &SnapshotRepo{
		collection: base.GetDatabase().Collection("floor_snapshots"),
	}
}

func snapshotID(tenant, key string) string {
	return tenant + ":" + key
}

// Read returns the stored value, or (nil, nil) when absent.
func (r *SnapshotRepo) Read(ctx context.Context, tenant, key string) ([]byte, error) {
	var doc snapshotDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": snapshotID(tenant, key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read snapshot %s: %w", key, err)
	}
	return []byte(doc.Value), nil
}

// Write upserts the value for (tenant, key).
func (r *SnapshotRepo) Write(ctx context.Context, tenant, key string, value []byte) error {
	doc := snapshotDoc{
		ID:        snapshotID(tenant, key),
		Tenant:    tenant,
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cannot write snapshot %s: %w", key, err)
	}
	return nil
}
