// Package model defines domain types used by the service.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Field identifies the entity a domain event refers to.
type Field string

// Known event fields.
const (
	FieldPage     Field = "page"
	FieldPost     Field = "post"
	FieldLike     Field = "like"
	FieldFollower Field = "follower"
)

// Action identifies what happened to the entity.
type Action string

// Known event actions.
const (
	ActionNew   Action = "new"
	ActionPlus  Action = "plus"
	ActionMinus Action = "minus"
	ActionStats Action = "stats"
)

// ErrInvalidEvent reports an event that does not satisfy the queue contract.
var ErrInvalidEvent = errors.New("invalid event")

// Event represents an incoming domain event from the work queue.
//
// Valid (field, action) combinations:
//
//	(page, new)                      create the counter record
//	(page, stats)                    read counters, reply to the caller
//	(post|like|follower, plus|minus) adjust the matching counter
type Event struct {
	Page   int64  `json:"page"`
	Field  Field  `json:"field"`
	Action Action `json:"action"`
}

// Validate checks the event against the queue contract.
func (e Event) Validate() error {
	if e.Page <= 0 {
		return fmt.Errorf("%w: page id %d", ErrInvalidEvent, e.Page)
	}
	switch e.Field {
	case FieldPage:
		if e.Action != ActionNew && e.Action != ActionStats {
			return fmt.Errorf("%w: action %q not valid for field %q", ErrInvalidEvent, e.Action, e.Field)
		}
	case FieldPost, FieldLike, FieldFollower:
		if e.Action != ActionPlus && e.Action != ActionMinus {
			return fmt.Errorf("%w: action %q not valid for field %q", ErrInvalidEvent, e.Action, e.Field)
		}
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidEvent, e.Field)
	}
	return nil
}

// DecodeEvent parses and validates a queue message body.
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// CounterName maps a field to its counter attribute in the store.
// The page field has no counter of its own.
func (f Field) CounterName() (string, bool) {
	switch f {
	case FieldPost:
		return "posts_count", true
	case FieldLike:
		return "likes_count", true
	case FieldFollower:
		return "followers_count", true
	default:
		return "", false
	}
}

// Stats is the per-page counter record returned on stats queries.
type Stats struct {
	PageID         int64 `json:"page_id"`
	PostsCount     int64 `json:"posts_count"`
	LikesCount     int64 `json:"likes_count"`
	FollowersCount int64 `json:"followers_count"`
}
