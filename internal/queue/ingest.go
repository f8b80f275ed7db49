package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chroniclehq/chronicle/backend/internal/util"
	"github.com/chroniclehq/chronicle/backend/pkg/ai"
	"github.com/chroniclehq/chronicle/backend/pkg/leaselock"
	"github.com/chroniclehq/chronicle/backend/pkg/logger"
	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/resolve"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
	pgxstore "github.com/chroniclehq/chronicle/backend/pkg/store/pgx"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IngestEntityMention is one entity named by a raw event.
type IngestEntityMention struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type"`
}

// IngestRawEvent is one extracted event mention in an ingest message.
type IngestRawEvent struct {
	Description string                `json:"description" validate:"required"`
	DateStr     string                `json:"date_str"`
	Context     string                `json:"context"`
	Entities    []IngestEntityMention `json:"entities" validate:"dive"`
}

// IngestDocumentMsg is one queued unit of work: a source document with its
// extracted raw events. An optional viewpoint id attaches the resolved
// canonical events to a timeline.
type IngestDocumentMsg struct {
	Title       string           `json:"title"`
	Language    string           `json:"language"`
	SourceType  string           `json:"source_type" validate:"required"`
	URL         string           `json:"url" validate:"required,url"`
	PageID      string           `json:"page_id"`
	Extract     string           `json:"extract"`
	ViewpointID int64            `json:"viewpoint_id"`
	RawEvents   []IngestRawEvent `json:"raw_events" validate:"dive"`
}

// sanitize cleans every free-form text field in the message before it can
// reach a postgres text column. Postgres rejects NUL bytes and invalid UTF-8,
// so one stray escape sequence in a payload would otherwise fail the document
// on every delivery.
func (m *IngestDocumentMsg) sanitize() {
	m.Title = util.SanitizePostgresText(m.Title)
	m.Extract = util.SanitizePostgresText(m.Extract)
	for i := range m.RawEvents {
		re := &m.RawEvents[i]
		re.Description = util.SanitizePostgresText(re.Description)
		re.DateStr = util.SanitizePostgresText(re.DateStr)
		re.Context = util.SanitizePostgresText(re.Context)
		for j := range re.Entities {
			re.Entities[j].Name = util.SanitizePostgresText(re.Entities[j].Name)
		}
	}
}

// ProcessIngestMessage handles one ingest message end to end: resolve the
// source document, resolve the mentioned entities, record raw events and
// resolve each into a canonical event. A per-document lease serializes
// concurrent deliveries for the same document; the whole pipeline runs in one
// transaction and is retried as a unit on transient database errors.
func ProcessIngestMessage(
	ctx context.Context,
	embedder ai.EmbeddingClient,
	wikiClient resolve.WikiLookup,
	locker *leaselock.Locker,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(IngestDocumentMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to decode ingest message: %w", err)
	}
	data.sanitize()
	if err := validate.Struct(data); err != nil {
		return fmt.Errorf("invalid ingest message: %w", err)
	}

	// The whole transactional pipeline reruns on transient connection
	// errors. Constraint violations and validation errors are final and
	// propagate on the first attempt.
	key := leaselock.DocumentKey(data.SourceType, data.URL)
	return locker.WithLease(ctx, key, leaselock.Options{Wait: true}, func(ctx context.Context) error {
		return util.RetryTransient(ctx, 3, 500*time.Millisecond, store.IsTransient, func(ctx context.Context) error {
			return pgxstore.WithTx(ctx, conn, func(ctx context.Context, st *pgxstore.Store) error {
				return ingestDocument(ctx, st, embedder, wikiClient, data)
			})
		})
	})
}

func ingestDocument(
	ctx context.Context,
	st *pgxstore.Store,
	embedder ai.EmbeddingClient,
	wikiClient resolve.WikiLookup,
	data *IngestDocumentMsg,
) error {
	entityResolver := resolve.NewEntityResolver(st, wikiClient)
	documentResolver := resolve.NewSourceDocumentResolver(st, entityResolver)
	eventResolver := resolve.NewCanonicalEventResolver(st, embedder)

	doc, err := documentResolver.ResolveSourceDocument(ctx, resolve.DocumentMetadata{
		Title:      data.Title,
		Language:   data.Language,
		SourceType: data.SourceType,
		URL:        data.URL,
		PageID:     data.PageID,
		Extract:    data.Extract,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve source document: %w", err)
	}
	logger.Info("[Ingest] Resolved source document", "document_id", doc.ID, "url", doc.URL)

	if err := st.UpdateSourceDocumentStatus(ctx, doc.ID, model.StatusProcessingEntities); err != nil {
		return err
	}

	entitiesByName, err := resolveMentions(ctx, entityResolver, data)
	if err != nil {
		return err
	}

	if err := st.UpdateSourceDocumentStatus(ctx, doc.ID, model.StatusProcessingLinking); err != nil {
		return err
	}

	embeddings := embedRawEvents(ctx, embedder, data, entitiesByName)

	eventIDs := make([]int64, 0, len(data.RawEvents))
	for i, re := range data.RawEvents {
		raw, created, err := st.EnsureRawEvent(ctx, store.NewRawEvent{
			SourceDocumentID: doc.ID,
			Description:      re.Description,
			DateStr:          re.DateStr,
			Date:             parseDate(re.DateStr),
			Context:          re.Context,
		})
		if err != nil {
			return fmt.Errorf("failed to record raw event: %w", err)
		}
		if !created {
			logger.Debug("[Ingest] Raw event already recorded", "raw_event_id", raw.ID)
		}

		entities := mentionEntities(re, entitiesByName)
		entityIDs := make([]int64, len(entities))
		for j, e := range entities {
			entityIDs[j] = e.ID
		}
		if err := st.LinkRawEventEntities(ctx, raw.ID, entityIDs); err != nil {
			return err
		}

		event, err := eventResolver.ResolveWithEmbedding(ctx, *raw, entities, embeddings[i])
		if err != nil {
			return fmt.Errorf("failed to resolve canonical event: %w", err)
		}
		eventIDs = append(eventIDs, event.ID)
	}

	if data.ViewpointID != 0 {
		if err := st.LinkViewpointEvents(ctx, data.ViewpointID, eventIDs); err != nil {
			return err
		}
	}

	if err := st.UpdateSourceDocumentStatus(ctx, doc.ID, model.StatusCompleted); err != nil {
		return err
	}

	logger.Info("[Ingest] Document completed", "document_id", doc.ID, "raw_events", len(data.RawEvents), "events", len(eventIDs))
	return nil
}

// mentionEntities maps a raw event's mentions to their resolved entities.
// Unresolved mentions are skipped.
func mentionEntities(re IngestRawEvent, byName map[string]model.Entity) []model.Entity {
	entities := make([]model.Entity, 0, len(re.Entities))
	for _, mention := range re.Entities {
		if entity, ok := byName[mention.Name]; ok {
			entities = append(entities, entity)
		}
	}
	return entities
}

// embedRawEvents computes every raw event's vector in one batched request. A
// failed batch degrades to zero vectors so the events still get stored; they
// just will not be found by later similarity searches.
func embedRawEvents(
	ctx context.Context,
	embedder ai.EmbeddingClient,
	data *IngestDocumentMsg,
	entitiesByName map[string]model.Entity,
) [][]float32 {
	inputs := make([][]byte, len(data.RawEvents))
	for i, re := range data.RawEvents {
		text := resolve.BuildEmbeddingText(model.RawEvent{
			Description: re.Description,
			DateStr:     re.DateStr,
			Context:     re.Context,
		}, mentionEntities(re, entitiesByName))
		inputs[i] = []byte(text)
	}

	embeddings, err := ai.GenerateEmbeddings(ctx, embedder, inputs)
	if err != nil || len(embeddings) != len(inputs) {
		logger.Warn("[Ingest] Batch embedding failed, storing zero vectors", "raw_events", len(inputs), "err", err)
		embeddings = make([][]float32, len(inputs))
		for i := range embeddings {
			embeddings[i] = ai.ZeroVector(embedder.Dimension())
		}
	}
	return embeddings
}

// resolveMentions resolves every distinct entity mention in the document in
// one batch and returns the resolved entities keyed by mention name.
// Unresolvable mentions are simply absent from the map; ingestion continues
// without them.
func resolveMentions(
	ctx context.Context,
	resolver *resolve.EntityResolver,
	data *IngestDocumentMsg,
) (map[string]model.Entity, error) {
	requests := make([]model.EntityRequest, 0)
	seen := make(map[string]bool)
	for _, re := range data.RawEvents {
		for _, mention := range re.Entities {
			if mention.Name == "" || seen[mention.Name] {
				continue
			}
			seen[mention.Name] = true
			requests = append(requests, model.EntityRequest{
				Name:     mention.Name,
				TypeHint: mention.Type,
				Language: data.Language,
			})
		}
	}
	if len(requests) == 0 {
		return map[string]model.Entity{}, nil
	}

	resolutions, err := resolver.ResolveEntities(ctx, requests, data.SourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entities: %w", err)
	}

	out := make(map[string]model.Entity, len(resolutions))
	for _, res := range resolutions {
		switch res.Outcome {
		case model.OutcomeResolved:
			entityType := res.Request.TypeHint
			if entityType == "" {
				entityType = model.EntityTypeUnknown
			}
			out[res.Request.Name] = model.Entity{
				ID:       res.EntityID,
				Name:     res.Request.Name,
				Type:     entityType,
				Verified: res.Verified,
			}
		case model.OutcomeDisambiguation:
			logger.Warn("[Ingest] Ambiguous entity mention", "name", res.Request.Name, "options", len(res.Options))
		case model.OutcomeNotFound:
			logger.Debug("[Ingest] Entity mention not found", "name", res.Request.Name)
		case model.OutcomeError:
			logger.Warn("[Ingest] Entity mention failed", "name", res.Request.Name, "err", res.Err)
		}
	}
	return out, nil
}

// parseDate attempts to turn a free-form date string into a structured date.
// Historical strings often defeat the parser; that only costs the structured
// column, the original string is kept either way.
func parseDate(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}
	t, err := dateparse.ParseAny(dateStr)
	if err != nil {
		logger.Debug("[Ingest] Could not parse date", "date_str", dateStr)
		return nil
	}
	return &t
}
