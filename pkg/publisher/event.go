package publisher

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeRepositoryCreated is the only event type this release emits
// (spec §4.6 "endpoints whose event-filter does not include
// repository.created").
const EventTypeRepositoryCreated = "repository.created"

// RepositoryCreatedEvent is the payload constructed once per creation and
// reused, serialised, across every endpoint (spec §4.6 "Payload").
type RepositoryCreatedEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	Organisation   string    `json:"organisation"`
	Repository     string    `json:"repository"`
	Visibility     string    `json:"visibility"`
	URL            string    `json:"url"`
	DefaultBranch  string    `json:"default_branch"`
	RepositoryType string    `json:"repository_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewRepositoryCreatedEvent stamps a fresh event ID. createdAt is supplied
// by the caller rather than computed here, keeping this package free of
// direct wall-clock reads.
func NewRepositoryCreatedEvent(org, repo, visibility, url, defaultBranch, repositoryType string, createdAt time.Time) RepositoryCreatedEvent {
	return RepositoryCreatedEvent{
		EventID:        uuid.NewString(),
		EventType:      EventTypeRepositoryCreated,
		Organisation:   org,
		Repository:     repo,
		Visibility:     visibility,
		URL:            url,
		DefaultBranch:  defaultBranch,
		RepositoryType: repositoryType,
		CreatedAt:      createdAt,
	}
}
