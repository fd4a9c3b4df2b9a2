package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeSearchCompleted is emitted after a search response has been composed.
const EventTypeSearchCompleted = "paper_search.search_completed"

// SearchCompletedEvent describes one completed search for downstream analytics.
type SearchCompletedEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	RequestID     string    `json:"request_id,omitempty"`
	QueryHash     string    `json:"query_hash"`
	Language      string    `json:"language"`
	Page          int       `json:"page"`
	PerPage       int       `json:"per_page"`
	TotalResults  int       `json:"total_results"`
	QueryVariants int       `json:"query_variants"`
	RankingMode   string    `json:"ranking_mode"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewSearchCompletedEvent creates an event with a fresh ID and timestamp.
func NewSearchCompletedEvent(queryHash, language string, page, perPage, total int) *SearchCompletedEvent {
	return &SearchCompletedEvent{
		EventID:      uuid.New().String(),
		EventType:    EventTypeSearchCompleted,
		QueryHash:    queryHash,
		Language:     language,
		Page:         page,
		PerPage:      perPage,
		TotalResults: total,
		CreatedAt:    time.Now().UTC(),
	}
}
