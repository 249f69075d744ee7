package models

import "time"

// MediaRecord is a binary payload held by the local media store. Pages only
// keep the ID, so deleting a record leaves their references dangling.
type MediaRecord struct {
	ID        string    `bson:"_id"`
	Type      PageType  `bson:"type"`
	FileName  string    `bson:"file_name"`
	Mime      string    `bson:"mime"`
	CreatedAt time.Time `bson:"created_at"`
	Blob      []byte    `bson:"blob"`
}
