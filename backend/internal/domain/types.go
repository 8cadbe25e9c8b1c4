package domain

import "time"

// ============================================================================
// Entities
// ============================================================================

// User is an account that authors channels, freets and relations
type User struct {
	ID        string    `json:"_id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	CreatedAt time.Time `json:"dateCreated" bson:"createdAt"`
}

// Channel is an author-owned curation surface that aggregates selected freets
type Channel struct {
	ID          string    `json:"_id" bson:"_id"`
	AuthorID    string    `json:"authorId" bson:"authorId"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"dateCreated" bson:"createdAt"`
	ModifiedAt  time.Time `json:"dateModified" bson:"modifiedAt"`
}

// Freet is a short user-authored post
type Freet struct {
	ID         string    `json:"_id" bson:"_id"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"dateCreated" bson:"createdAt"`
	ModifiedAt time.Time `json:"dateModified" bson:"modifiedAt"`
}

// Connection places one freet into one channel. Only the channel's author creates it.
type Connection struct {
	ID        string    `json:"_id" bson:"_id"`
	AuthorID  string    `json:"authorId" bson:"authorId"`
	ChannelID string    `json:"channelId" bson:"channelId"`
	FreetID   string    `json:"freetId" bson:"freetId"`
	CreatedAt time.Time `json:"dateCreated" bson:"createdAt"`
}

// Follow is a user's membership in a channel's connection feed
type Follow struct {
	ID        string    `json:"_id" bson:"_id"`
	AuthorID  string    `json:"authorId" bson:"authorId"`
	ChannelID string    `json:"channelId" bson:"channelId"`
	CreatedAt time.Time `json:"dateCreated" bson:"createdAt"`
}

// Subscribe is a user's subscription to another user's freet stream
type Subscribe struct {
	ID              string    `json:"_id" bson:"_id"`
	AuthorID        string    `json:"authorId" bson:"authorId"`
	SubscribingToID string    `json:"subscribingToId" bson:"subscribingToId"`
	CreatedAt       time.Time `json:"dateCreated" bson:"createdAt"`
}
