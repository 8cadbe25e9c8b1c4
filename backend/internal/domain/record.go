package domain

import (
	"fmt"
	"strings"
)

// Kind names one of the entity collections
type Kind string

const (
	KindUser       Kind = "users"
	KindChannel    Kind = "channels"
	KindFreet      Kind = "freets"
	KindConnection Kind = "connections"
	KindFollow     Kind = "follows"
	KindSubscribe  Kind = "subscribes"
)

// Kinds lists every collection in dependency order: referenced kinds come first.
var Kinds = []Kind{KindUser, KindChannel, KindFreet, KindConnection, KindFollow, KindSubscribe}

// Field names usable in store filters. They match the persisted document keys.
const (
	FieldUsername        = "username"
	FieldAuthorID        = "authorId"
	FieldChannelID       = "channelId"
	FieldFreetID         = "freetId"
	FieldSubscribingToID = "subscribingToId"
)

// Entity returns the singular entity name used in messages ("channel", "freet", ...).
func (k Kind) Entity() string {
	switch k {
	case KindUser:
		return "user"
	case KindChannel:
		return "channel"
	case KindFreet:
		return "freet"
	case KindConnection:
		return "connection"
	case KindFollow:
		return "follow"
	case KindSubscribe:
		return "subscribe"
	}
	return string(k)
}

// Label is the node label used by graph backends.
func (k Kind) Label() string {
	e := k.Entity()
	return strings.ToUpper(e[:1]) + e[1:]
}

// UniqueFields returns the compound key that at most one live record of the
// kind may hold, or nil when the kind has none.
func (k Kind) UniqueFields() []string {
	switch k {
	case KindUser:
		return []string{FieldUsername}
	case KindConnection:
		return []string{FieldChannelID, FieldFreetID}
	case KindFollow:
		return []string{FieldAuthorID, FieldChannelID}
	case KindSubscribe:
		return []string{FieldAuthorID, FieldSubscribingToID}
	}
	return nil
}

// Fields returns the filterable reference fields of the kind.
func (k Kind) Fields() []string {
	switch k {
	case KindUser:
		return []string{FieldUsername}
	case KindChannel, KindFreet:
		return []string{FieldAuthorID}
	case KindConnection:
		return []string{FieldAuthorID, FieldChannelID, FieldFreetID}
	case KindFollow:
		return []string{FieldAuthorID, FieldChannelID}
	case KindSubscribe:
		return []string{FieldAuthorID, FieldSubscribingToID}
	}
	return nil
}

// HasField reports whether name is a filterable field of the kind.
func (k Kind) HasField(name string) bool {
	for _, f := range k.Fields() {
		if f == name {
			return true
		}
	}
	return false
}

// Record is implemented by every stored entity
type Record interface {
	Kind() Kind
	GetID() string
	// Field returns the value of a filterable field.
	Field(name string) (string, bool)
}

// New returns an empty record of the given kind, ready to be decoded into.
func New(kind Kind) (Record, error) {
	switch kind {
	case KindUser:
		return &User{}, nil
	case KindChannel:
		return &Channel{}, nil
	case KindFreet:
		return &Freet{}, nil
	case KindConnection:
		return &Connection{}, nil
	case KindFollow:
		return &Follow{}, nil
	case KindSubscribe:
		return &Subscribe{}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// UniqueKey joins the values of the kind's compound key. ok is false for
// kinds without one.
func UniqueKey(rec Record) (key string, ok bool) {
	fields := rec.Kind().UniqueFields()
	if len(fields) == 0 {
		return "", false
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i], _ = rec.Field(f)
	}
	return strings.Join(parts, "\x1f"), true
}

// Clone returns a copy of rec that shares no memory with it.
func Clone(rec Record) Record {
	switch r := rec.(type) {
	case *User:
		c := *r
		return &c
	case *Channel:
		c := *r
		return &c
	case *Freet:
		c := *r
		return &c
	case *Connection:
		c := *r
		return &c
	case *Follow:
		c := *r
		return &c
	case *Subscribe:
		c := *r
		return &c
	}
	return rec
}

func (*User) Kind() Kind       { return KindUser }
func (*Channel) Kind() Kind    { return KindChannel }
func (*Freet) Kind() Kind      { return KindFreet }
func (*Connection) Kind() Kind { return KindConnection }
func (*Follow) Kind() Kind     { return KindFollow }
func (*Subscribe) Kind() Kind  { return KindSubscribe }

func (u *User) GetID() string       { return u.ID }
func (c *Channel) GetID() string    { return c.ID }
func (f *Freet) GetID() string      { return f.ID }
func (c *Connection) GetID() string { return c.ID }
func (f *Follow) GetID() string     { return f.ID }
func (s *Subscribe) GetID() string  { return s.ID }

func (u *User) Field(name string) (string, bool) {
	if name == FieldUsername {
		return u.Username, true
	}
	return "", false
}

func (c *Channel) Field(name string) (string, bool) {
	if name == FieldAuthorID {
		return c.AuthorID, true
	}
	return "", false
}

func (f *Freet) Field(name string) (string, bool) {
	if name == FieldAuthorID {
		return f.AuthorID, true
	}
	return "", false
}

func (c *Connection) Field(name string) (string, bool) {
	switch name {
	case FieldAuthorID:
		return c.AuthorID, true
	case FieldChannelID:
		return c.ChannelID, true
	case FieldFreetID:
		return c.FreetID, true
	}
	return "", false
}

func (f *Follow) Field(name string) (string, bool) {
	switch name {
	case FieldAuthorID:
		return f.AuthorID, true
	case FieldChannelID:
		return f.ChannelID, true
	}
	return "", false
}

func (s *Subscribe) Field(name string) (string, bool) {
	switch name {
	case FieldAuthorID:
		return s.AuthorID, true
	case FieldSubscribingToID:
		return s.SubscribingToID, true
	}
	return "", false
}
