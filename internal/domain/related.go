package domain

import (
	"strings"

	"butterfly/internal/errors"
)

// Direction selects which related items the remote source returns
type Direction string

const (
	DirectionFuture Direction = "f" // Related items later in time
	DirectionPast   Direction = "p" // Related items earlier in time
)

// ParseDirection accepts "f", "p", "future" and "past"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "future":
		return DirectionFuture, nil
	case "p", "past":
		return DirectionPast, nil
	default:
		return "", errors.Newf("unknown direction %q", s)
	}
}

// Word is the phrase used in relation labels
func (d Direction) Word() string {
	if d == DirectionPast {
		return "earlier"
	}
	return "later"
}

// RelatedStatus tags a decoded remote response
type RelatedStatus int

const (
	RelatedSuccess RelatedStatus = iota // Items follow
	RelatedEmpty                        // The source has nothing further
)

func (s RelatedStatus) String() string {
	switch s {
	case RelatedSuccess:
		return "success"
	case RelatedEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Item is one related entry returned by the remote source
type Item struct {
	ExternalKey string        `json:"external_key"`
	Fields      DisplayFields `json:"fields"`
}

// RelatedResult is the decoded remote answer. Transport failures are not a
// status; they come back as an error next to a zero RelatedResult.
type RelatedResult struct {
	Status RelatedStatus `json:"status"`
	Items  []Item        `json:"items,omitempty"`
}

// Success builds a result carrying items
func Success(items ...Item) RelatedResult {
	return RelatedResult{Status: RelatedSuccess, Items: items}
}

// Empty builds the "no further items" result
func Empty() RelatedResult {
	return RelatedResult{Status: RelatedEmpty}
}

// IsEmpty reports whether the result adds nothing to the graph
func (r RelatedResult) IsEmpty() bool {
	return r.Status == RelatedEmpty || len(r.Items) == 0
}
