package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storyweave/models"
)

const (
	mediaCollection = "media"
	metaCollection  = "meta"
	schemaDocID     = "media_schema"
)

// mongoMigrations are applied in order; the stored schema version is the
// number of migrations already applied.
var mongoMigrations = []func(ctx context.Context, db *mongo.Database) error{
	func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(mediaCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		})
		return err
	},
	func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(mediaCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "type", Value: 1}},
		})
		return err
	},
}

// MongoRecords keeps media records in a MongoDB collection. Records are
// limited by the 16 MB document size.
type MongoRecords struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Records = (*MongoRecords)(nil)

// OpenMongo returns an Opener connecting to uri on first use.
func OpenMongo(uri, database string) Opener {
	return func(ctx context.Context) (Records, error) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		db := client.Database(database)
		if err := migrateMongo(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &MongoRecords{client: client, coll: db.Collection(mediaCollection)}, nil
	}
}

func migrateMongo(ctx context.Context, db *mongo.Database) error {
	meta := db.Collection(metaCollection)
	var doc struct {
		Version int `bson:"version"`
	}
	err := meta.FindOne(ctx, bson.M{"_id": schemaDocID}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("read media schema version: %w", err)
	}
	for v := doc.Version; v < len(mongoMigrations); v++ {
		if err := mongoMigrations[v](ctx, db); err != nil {
			return fmt.Errorf("media schema migration %d: %w", v+1, err)
		}
		_, err := meta.UpdateOne(ctx,
			bson.M{"_id": schemaDocID},
			bson.M{"$set": bson.M{"version": v + 1, "updated_at": time.Now().UTC()}},
			options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("record media schema version %d: %w", v+1, err)
		}
	}
	return nil
}

func (r *MongoRecords) Put(ctx context.Context, rec *models.MediaRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert media %s: %w", rec.ID, err)
	}
	return nil
}

func (r *MongoRecords) Get(ctx context.Context, id string) (*models.MediaRecord, error) {
	var rec models.MediaRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find media %s: %w", id, err)
	}
	return &rec, nil
}

func (r *MongoRecords) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}

func (r *MongoRecords) Close() error {
	return r.client.Disconnect(context.Background())
}
