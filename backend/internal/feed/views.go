package feed

import (
	"time"

	"channelfeed/backend/internal/domain"
)

// DateFormat renders timestamps in views
const DateFormat = "January 2 2006, 3:04:05 pm"

func formatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// UserView is the public shape of a user
type UserView struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	DateCreated string `json:"dateCreated"`
}

// ChannelView is a channel with its author resolved to a username
type ChannelView struct {
	ID           string `json:"_id"`
	Author       string `json:"author"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
}

// FreetView is a freet with its author resolved to a username
type FreetView struct {
	ID           string `json:"_id"`
	Author       string `json:"author"`
	Content      string `json:"content"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
}

// ConnectionView carries the referenced channel and freet records. Either
// is nil when the reference dangles.
type ConnectionView struct {
	ID          string          `json:"_id"`
	Author      string          `json:"author"`
	Channel     *domain.Channel `json:"channel"`
	Freet       *domain.Freet   `json:"freet"`
	DateCreated string          `json:"dateCreated"`
}

type FollowView struct {
	ID          string          `json:"_id"`
	Author      string          `json:"author"`
	Channel     *domain.Channel `json:"channel"`
	DateCreated string          `json:"dateCreated"`
}

type SubscribeView struct {
	ID              string `json:"_id"`
	AuthorID        string `json:"authorId"`
	Author          string `json:"author"`
	SubscribingToID string `json:"subscribingToId"`
	SubscribingTo   string `json:"subscribingTo"`
	DateCreated     string `json:"dateCreated"`
}

// UserViewOf needs no joins.
func UserViewOf(u *domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, DateCreated: formatDate(u.CreatedAt)}
}
