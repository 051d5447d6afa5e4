package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRecord is a cached player profile keyed by Gametag.
type UserRecord struct {
	ID       primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Gametag  string             `json:"gametag" bson:"gametag"` // GameName + TagLine, no separator
	GameName string             `json:"gameName" bson:"gameName"`
	TagLine  string             `json:"tagLine" bson:"tagLine"`
	PUUID    string             `json:"puuid" bson:"puuid"`
	Matches  []string           `json:"matches" bson:"matches"`   // most recent first
	Platform string             `json:"platform" bson:"platform"` // routing key, e.g. "americas"

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Profile is what the fetcher returns for an account lookup.
type Profile struct {
	PUUID          string
	GameName       string
	TagLine        string
	RecentMatchIDs []string
}

// Default values
const (
	DefaultMatchPageSize = 20
	DefaultRegion        = "na1"
)
