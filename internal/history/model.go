package history

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is one fetch issued to the news API. It never holds article content.
type Record struct {
	ObjectID   primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID         string             `bson:"fetchId" json:"fetchId"`
	Kind       string             `bson:"kind" json:"kind"`
	Value      string             `bson:"value" json:"value"`
	Page       int                `bson:"page" json:"page"`
	PageSize   int                `bson:"pageSize" json:"pageSize"`
	Total      int                `bson:"total" json:"total"`
	Count      int                `bson:"count" json:"count"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	DurationMs int64              `bson:"durationMs" json:"durationMs"`
	At         time.Time          `bson:"at" json:"at"`
}

func (r Record) Failed() bool {
	return r.Error != ""
}
