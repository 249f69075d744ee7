package persist

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storyweave/models"
)

type storyDocument struct {
	ID              string `bson:"_id"`
	models.Manifest `bson:",inline"`
}

// MongoStore keeps one manifest document per story id.
type MongoStore struct {
	coll    *mongo.Collection
	storyID string
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database, storyID string) *MongoStore {
	return &MongoStore{coll: db.Collection("stories"), storyID: storyID}
}

func (s *MongoStore) Load(ctx context.Context) (*models.Manifest, error) {
	var doc storyDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": s.storyID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoStory
	}
	if err != nil {
		return nil, fmt.Errorf("find story %s: %w", s.storyID, err)
	}
	if doc.Pages == nil {
		doc.Pages = []models.ManifestPage{}
	}
	return &doc.Manifest, nil
}

// Save upserts the manifest. The filter only matches documents whose revision
// is not newer than the incoming one, so a stale write hits the unique _id
// and comes back as ErrStaleRevision.
func (s *MongoStore) Save(ctx context.Context, m *models.Manifest) error {
	filter := bson.M{"_id": s.storyID}
	if m.Revision > 0 {
		filter["revision"] = bson.M{"$lte": m.Revision}
	}
	_, err := s.coll.ReplaceOne(ctx, filter, storyDocument{ID: s.storyID, Manifest: *m}, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrStaleRevision
	}
	if err != nil {
		return fmt.Errorf("replace story %s: %w", s.storyID, err)
	}
	return nil
}
