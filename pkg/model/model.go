package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SourceType tags where a source document was ingested from. Only the
// Wikipedia source type is verification-eligible: documents of other source
// types never spawn entities.
const (
	SourceTypeWikipedia = "wikipedia"
	SourceTypeWeb       = "web"
)

// EntityTypeUnknown is the placeholder type used when a mention carries no
// type hint. A stored UNKNOWN type may later be refined to a specific one,
// never the other way around.
const EntityTypeUnknown = "UNKNOWN"

// ProcessingStatus tracks how far a source document has moved through the
// ingestion pipeline.
type ProcessingStatus string

const (
	StatusPending            ProcessingStatus = "pending"
	StatusProcessingEntities ProcessingStatus = "processing_entities"
	StatusProcessingLinking  ProcessingStatus = "processing_linking"
	StatusCompleted          ProcessingStatus = "completed"
)

// Entity is a canonical real-world object (person, place, organization or
// event type). The Wikibase item id is the sole merge key: all mentions and
// source documents that resolve to the same item share one Entity row.
type Entity struct {
	ID           int64  `json:"id"`
	PublicID     string `json:"public_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	WikibaseItem string `json:"wikibase_item"`
	Verified     bool   `json:"verified"`
}

// SourceDocument is the metadata record for one external document, e.g. one
// Wikipedia article. The (URL, source type) pair is unique so the same
// document is never ingested twice under the same source.
type SourceDocument struct {
	ID               int64            `json:"id"`
	PublicID         string           `json:"public_id"`
	Title            string           `json:"title"`
	Language         string           `json:"language"`
	SourceType       string           `json:"source_type"`
	URL              string           `json:"url"`
	PageID           string           `json:"page_id"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	EntityID         *int64           `json:"entity_id,omitempty"`
	Extract          string           `json:"extract"`
}

// RawEvent is one extracted, pre-normalization event mention from one
// document. Rows are append-only evidence: they are never mutated after
// creation. (source document, dedup signature) is unique.
type RawEvent struct {
	ID               int64      `json:"id"`
	PublicID         string     `json:"public_id"`
	SourceDocumentID int64      `json:"source_document_id"`
	DedupSignature   string     `json:"dedup_signature"`
	Description      string     `json:"description"`
	DateStr          string     `json:"date_str"`
	Date             *time.Time `json:"date,omitempty"`
	Context          string     `json:"context,omitempty"`
}

// Event is a canonical, deduplicated historical occurrence. The resolver
// never rewrites an existing Event: new raw events attach via association
// rows, so description and embedding stay as first written.
type Event struct {
	ID          int64      `json:"id"`
	PublicID    string     `json:"public_id"`
	DateStr     string     `json:"date_str"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
	Embedding   []float32  `json:"-"`
}

// Viewpoint is a thematic timeline grouping of canonical events. Owned by the
// orchestration layer; only the event association is written here.
type Viewpoint struct {
	ID       int64  `json:"id"`
	PublicID string `json:"public_id"`
	Title    string `json:"title"`
}

// EntityRequest is one mention to resolve: a free-text name with an optional
// type hint and the language it was mentioned in.
type EntityRequest struct {
	Name     string `json:"name"`
	TypeHint string `json:"type_hint"`
	Language string `json:"language"`
}

// EntityOutcome classifies the result of resolving one entity request.
type EntityOutcome string

const (
	OutcomeResolved       EntityOutcome = "resolved"
	OutcomeNotFound       EntityOutcome = "not_found"
	OutcomeDisambiguation EntityOutcome = "disambiguation"
	OutcomeError          EntityOutcome = "error"
)

// EntityResolution is the per-request result of entity resolution. The result
// slice returned by the resolver is always the same length and order as the
// request slice, whichever phase resolved each index.
type EntityResolution struct {
	Request  EntityRequest `json:"request"`
	EntityID int64         `json:"entity_id,omitempty"`
	Verified bool          `json:"verified"`
	Outcome  EntityOutcome `json:"outcome"`
	// Options lists candidate article titles when the lookup hit a
	// disambiguation page.
	Options []string `json:"options,omitempty"`
	Err     error    `json:"-"`
}

// RawEventSignature computes the content hash that deduplicates literal
// re-extractions of the same mention within one source document.
func RawEventSignature(description, dateStr string) string {
	sum := sha256.Sum256([]byte(description + "|" + dateStr))
	return hex.EncodeToString(sum[:])
}
