package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Order is the timestamp direction of an aggregated sequence
type Order int

const (
	// NewestFirst puts the most recent timestamp first
	NewestFirst Order = iota
	// OldestFirst puts the earliest timestamp first
	OldestFirst
)

func (o Order) String() string {
	if o == OldestFirst {
		return "oldest"
	}
	return "newest"
}

// ParseOrder reads "newest"/"desc" or "oldest"/"asc". An empty string yields fallback.
func ParseOrder(s string, fallback Order) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case "newest", "desc":
		return NewestFirst, nil
	case "oldest", "asc":
		return OldestFirst, nil
	}
	return fallback, fmt.Errorf("unknown order %q", s)
}

// SortByTime sorts items by the timestamp returned from at, in the given
// order. Equal timestamps fall back to id so the result is deterministic.
func SortByTime[T any](items []T, order Order, at func(T) time.Time, id func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		c := at(a).Compare(at(b))
		if c == 0 {
			c = strings.Compare(id(a), id(b))
		}
		if order == NewestFirst {
			return -c
		}
		return c
	})
}
