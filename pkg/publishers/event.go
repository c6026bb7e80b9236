package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
)

// Event is the payload published downstream for every newly stored article.
type Event struct {
	ProviderID   string         `json:"provider_id"`
	ProviderName string         `json:"provider_name"`
	SourceID     int64          `json:"source_id"`
	Article      domain.Article `json:"article"`
	IngestedAt   time.Time      `json:"ingested_at"`
}

// NewEvent constructs an Event for the given provider + article.
func NewEvent(providerID, providerName string, sourceID int64, article domain.Article, ingestedAt time.Time) Event {
	if ingestedAt.IsZero() {
		ingestedAt = time.Now()
	}
	return Event{
		ProviderID:   providerID,
		ProviderName: providerName,
		SourceID:     sourceID,
		Article:      article,
		IngestedAt:   ingestedAt.UTC(),
	}
}
