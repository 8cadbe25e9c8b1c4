package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"channelfeed/backend/internal/domain"
	apperrors "channelfeed/backend/pkg/errors"
)

const (
	propID          = "id"
	propUnique      = "uniq"
	propTitle       = "title"
	propDescription = "description"
	propContent     = "content"
	propCreatedAt   = "createdAt"
	propModifiedAt  = "modifiedAt"
)

// ============================================================================
// Record <-> node properties
// ============================================================================

func toProps(rec domain.Record) map[string]any {
	props := map[string]any{propID: rec.GetID()}
	if key, ok := domain.UniqueKey(rec); ok {
		props[propUnique] = key
	}
	for _, f := range rec.Kind().Fields() {
		props[f], _ = rec.Field(f)
	}

	switch r := rec.(type) {
	case *domain.User:
		props[propCreatedAt] = r.CreatedAt
	case *domain.Channel:
		props[propTitle] = r.Title
		props[propDescription] = r.Description
		props[propCreatedAt] = r.CreatedAt
		props[propModifiedAt] = r.ModifiedAt
	case *domain.Freet:
		props[propContent] = r.Content
		props[propCreatedAt] = r.CreatedAt
		props[propModifiedAt] = r.ModifiedAt
	case *domain.Connection:
		props[propCreatedAt] = r.CreatedAt
	case *domain.Follow:
		props[propCreatedAt] = r.CreatedAt
	case *domain.Subscribe:
		props[propCreatedAt] = r.CreatedAt
	}
	return props
}

func recordFromNode(kind domain.Kind, row *neo4j.Record) (domain.Record, error) {
	val, ok := row.Get("n")
	if !ok {
		return nil, apperrors.NewStoreFailed("decode "+string(kind), fmt.Errorf("row has no node"))
	}
	node, ok := val.(neo4j.Node)
	if !ok {
		return nil, apperrors.NewStoreFailed("decode "+string(kind), fmt.Errorf("unexpected value %T", val))
	}
	p := node.Props

	id := getStringFromMap(p, propID, "")
	created := getTimeFromMap(p, propCreatedAt)
	switch kind {
	case domain.KindUser:
		return &domain.User{
			ID:        id,
			Username:  getStringFromMap(p, domain.FieldUsername, ""),
			CreatedAt: created,
		}, nil
	case domain.KindChannel:
		return &domain.Channel{
			ID:          id,
			AuthorID:    getStringFromMap(p, domain.FieldAuthorID, ""),
			Title:       getStringFromMap(p, propTitle, ""),
			Description: getStringFromMap(p, propDescription, ""),
			CreatedAt:   created,
			ModifiedAt:  getTimeFromMap(p, propModifiedAt),
		}, nil
	case domain.KindFreet:
		return &domain.Freet{
			ID:         id,
			AuthorID:   getStringFromMap(p, domain.FieldAuthorID, ""),
			Content:    getStringFromMap(p, propContent, ""),
			CreatedAt:  created,
			ModifiedAt: getTimeFromMap(p, propModifiedAt),
		}, nil
	case domain.KindConnection:
		return &domain.Connection{
			ID:        id,
			AuthorID:  getStringFromMap(p, domain.FieldAuthorID, ""),
			ChannelID: getStringFromMap(p, domain.FieldChannelID, ""),
			FreetID:   getStringFromMap(p, domain.FieldFreetID, ""),
			CreatedAt: created,
		}, nil
	case domain.KindFollow:
		return &domain.Follow{
			ID:        id,
			AuthorID:  getStringFromMap(p, domain.FieldAuthorID, ""),
			ChannelID: getStringFromMap(p, domain.FieldChannelID, ""),
			CreatedAt: created,
		}, nil
	case domain.KindSubscribe:
		return &domain.Subscribe{
			ID:              id,
			AuthorID:        getStringFromMap(p, domain.FieldAuthorID, ""),
			SubscribingToID: getStringFromMap(p, domain.FieldSubscribingToID, ""),
			CreatedAt:       created,
		}, nil
	}
	return nil, apperrors.NewStoreFailed("decode", fmt.Errorf("unknown kind %q", kind))
}

// ============================================================================
// Helper Functions
// ============================================================================

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getStringFromMap(m map[string]any, key, defaultValue string) string {
	val, ok := m[key]
	if !ok || val == nil {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

// getTimeFromMap reads a datetime property. The driver returns zoned values
// as time.Time; local datetimes come back as neo4j.LocalDateTime.
func getTimeFromMap(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v.UTC()
	case neo4j.LocalDateTime:
		return v.Time().UTC()
	}
	return time.Time{}
}
