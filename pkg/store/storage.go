package store

import (
	"context"
	"time"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
)

// TitleLanguage identifies an article by its title in one language. Used as
// the key for batched local entity lookups.
type TitleLanguage struct {
	Title    string
	Language string
}

// NewEntity holds the fields for creating a verified entity.
type NewEntity struct {
	Name         string
	Type         string
	WikibaseItem string
}

// DocumentFilter selects source documents by exact match on any combination
// of its fields. Zero-valued fields are not part of the filter.
type DocumentFilter struct {
	SourceType string
	Title      string
	URL        string
	Language   string
}

// NewSourceDocument holds the fields for creating a source document.
type NewSourceDocument struct {
	Title      string
	Language   string
	SourceType string
	URL        string
	PageID     string
	EntityID   *int64
	Extract    string
}

// NewRawEvent holds the fields for recording one extracted event mention.
type NewRawEvent struct {
	SourceDocumentID int64
	Description      string
	DateStr          string
	Date             *time.Time
	Context          string
}

// NewEvent holds the fields for creating a canonical event.
type NewEvent struct {
	DateStr     string
	Description string
	Date        *time.Time
	Embedding   []float32
}

// EventCandidate is one approximate nearest neighbor from the vector index,
// with its index-reported cosine distance.
type EventCandidate struct {
	Event    model.Event
	Distance float64
}

// Storage is the persistence contract of the resolution engine. Every method
// runs on the transaction the implementation is bound to; implementations
// never commit or roll back themselves. All uniqueness invariants are
// enforced by the underlying store, so the contract holds under concurrent
// callers, not just sequential ones.
type Storage interface {
	GetSourceDocument(ctx context.Context, filter DocumentFilter) (*model.SourceDocument, error)
	EnsureSourceDocument(ctx context.Context, doc NewSourceDocument) (*model.SourceDocument, bool, error)
	UpdateSourceDocumentStatus(ctx context.Context, id int64, status model.ProcessingStatus) error

	GetEntitiesByTitleLanguage(ctx context.Context, sourceType string, keys []TitleLanguage) (map[TitleLanguage]model.Entity, error)
	GetEntitiesByWikibaseItems(ctx context.Context, items []string) (map[string]model.Entity, error)
	CreateEntities(ctx context.Context, entities []NewEntity) ([]model.Entity, error)
	RefineEntityType(ctx context.Context, id int64, entityType string) error

	EnsureRawEvent(ctx context.Context, raw NewRawEvent) (*model.RawEvent, bool, error)

	CreateEvent(ctx context.Context, event NewEvent) (*model.Event, error)
	FindNearestEvents(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]EventCandidate, error)
	CosineSimilarity(ctx context.Context, eventID int64, embedding []float32) (float64, error)
	EventHasSourceDocument(ctx context.Context, eventID, sourceDocumentID int64) (bool, error)

	LinkEventRawEvent(ctx context.Context, eventID, rawEventID int64) error
	LinkEventEntities(ctx context.Context, eventID int64, entityIDs []int64) error
	LinkRawEventEntities(ctx context.Context, rawEventID int64, entityIDs []int64) error
	LinkViewpointEvents(ctx context.Context, viewpointID int64, eventIDs []int64) error
}
